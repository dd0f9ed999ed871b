package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/sjson"

	"sitecms/api/internal/schema"
)

// Section keys for the list-valued parts of the document.
const (
	SectionServices       = "services"
	SectionAreas          = "areas"
	SectionNavigation     = "navigation"
	SectionAccreditations = "accreditations"
	SectionKeywords       = "keywords"
	SectionProcessSteps   = "processSteps"
	SectionGalleryItems   = "galleryItems"
	SectionReviews        = "reviews"
)

// sectionOrder is the display order and the order invalid sections are reported in.
var sectionOrder = []string{
	SectionServices,
	SectionAreas,
	SectionNavigation,
	SectionAccreditations,
	SectionKeywords,
	SectionProcessSteps,
	SectionGalleryItems,
	SectionReviews,
}

var sectionPaths = map[string]string{
	SectionServices:       "services",
	SectionAreas:          "areas",
	SectionNavigation:     "navigation",
	SectionAccreditations: "proof.accreditations",
	SectionKeywords:       "seo.keywords",
	SectionProcessSteps:   "home.process.steps",
	SectionGalleryItems:   "home.gallery.items",
	SectionReviews:        "home.reviews.items",
}

// Section holds one canonical list and its text projection. The text may run
// ahead of the value while it does not parse.
type Section[T any] struct {
	value    []T
	text     string
	invalid  bool
	parseErr string
}

func newSection[T any](value []T) *Section[T] {
	s := &Section[T]{}
	s.Set(value)
	return s
}

// Value returns a copy of the last successfully parsed list.
func (s *Section[T]) Value() []T {
	return append([]T{}, s.value...)
}

func (s *Section[T]) Text() string  { return s.text }
func (s *Section[T]) Invalid() bool { return s.invalid }

// Set replaces the value, re-renders the text and clears the invalid flag.
func (s *Section[T]) Set(value []T) {
	s.value = append([]T{}, value...)
	s.text = toText(s.value)
	s.invalid = false
	s.parseErr = ""
}

// SetText records text and, when it parses, adopts it as the new value.
func (s *Section[T]) SetText(text string) error {
	s.text = text
	value, err := fromText[T](text)
	if err != nil {
		s.invalid = true
		s.parseErr = err.Error()
		return err
	}
	s.value = value
	s.invalid = false
	s.parseErr = ""
	return nil
}

func (s *Section[T]) raw() ([]byte, error) {
	return json.Marshal(s.value)
}

func (s *Section[T]) view(key string) SectionView {
	raw, _ := s.raw()
	return SectionView{Key: key, Text: s.text, Invalid: s.invalid, Error: s.parseErr, Value: raw}
}

func (s *Section[T]) state() sectionState {
	raw, _ := s.raw()
	return sectionState{Value: raw, Text: s.text, Invalid: s.invalid, Error: s.parseErr}
}

func (s *Section[T]) restore(state sectionState) error {
	var value []T
	if err := json.Unmarshal(state.Value, &value); err != nil {
		return err
	}
	s.value = value
	s.text = state.Text
	s.invalid = state.Invalid
	s.parseErr = state.Error
	return nil
}

func toText[T any](value []T) string {
	if value == nil {
		value = []T{}
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// fromText decodes strictly: unknown fields and trailing data are errors,
// and null is an empty list.
func fromText[T any](text string) ([]T, error) {
	trimmed := bytes.TrimSpace([]byte(text))
	if bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var value []T
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if dec.More() {
		return nil, errors.New("parse: unexpected data after the list")
	}
	if value == nil {
		value = []T{}
	}
	return value, nil
}

// SectionView is the operator-facing view of one section.
type SectionView struct {
	Key     string          `json:"key"`
	Text    string          `json:"text"`
	Invalid bool            `json:"invalid"`
	Error   string          `json:"error,omitempty"`
	Value   json.RawMessage `json:"value"`
}

type sectionState struct {
	Value   json.RawMessage `json:"value"`
	Text    string          `json:"text"`
	Invalid bool            `json:"invalid"`
	Error   string          `json:"error,omitempty"`
}

type sectionEditor interface {
	Text() string
	Invalid() bool
	SetText(text string) error
	raw() ([]byte, error)
	view(key string) SectionView
	state() sectionState
	restore(state sectionState) error
}

type sections struct {
	services       *Section[schema.Service]
	areas          *Section[schema.Area]
	navigation     *Section[schema.NavLink]
	accreditations *Section[schema.Accreditation]
	keywords       *Section[string]
	processSteps   *Section[schema.ProcessStep]
	galleryItems   *Section[schema.GalleryItem]
	reviews        *Section[schema.Review]
}

func newSections(cfg schema.SiteConfiguration) sections {
	return sections{
		services:       newSection(cfg.Services),
		areas:          newSection(cfg.Areas),
		navigation:     newSection(cfg.Navigation),
		accreditations: newSection(cfg.Proof.Accreditations),
		keywords:       newSection(cfg.SEO.Keywords),
		processSteps:   newSection(cfg.Home.Process.Steps),
		galleryItems:   newSection(cfg.Home.Gallery.Items),
		reviews:        newSection(cfg.Home.Reviews.Items),
	}
}

func (s sections) get(key string) (sectionEditor, bool) {
	switch key {
	case SectionServices:
		return s.services, true
	case SectionAreas:
		return s.areas, true
	case SectionNavigation:
		return s.navigation, true
	case SectionAccreditations:
		return s.accreditations, true
	case SectionKeywords:
		return s.keywords, true
	case SectionProcessSteps:
		return s.processSteps, true
	case SectionGalleryItems:
		return s.galleryItems, true
	case SectionReviews:
		return s.reviews, true
	}
	return nil, false
}

// write sets every section's last valid value into doc.
func (s sections) write(doc []byte) ([]byte, error) {
	for _, key := range sectionOrder {
		section, _ := s.get(key)
		raw, err := section.raw()
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		if doc, err = sjson.SetRawBytes(doc, sectionPaths[key], raw); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}
	return doc, nil
}

func (s sections) invalidKeys() []string {
	var keys []string
	for _, key := range sectionOrder {
		if section, _ := s.get(key); section.Invalid() {
			keys = append(keys, key)
		}
	}
	return keys
}
