// Package editor holds the operator's form-shaped working copy of the site
// configuration and turns it back into a validated candidate on save.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/sjson"

	"sitecms/api/internal/assets"
	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
	"sitecms/api/internal/util"
)

// Committer persists a whole candidate configuration.
type Committer interface {
	Commit(ctx context.Context, candidate schema.SiteConfiguration) error
}

// Uploader stores pending files and applies their references to the candidate.
type Uploader interface {
	StoreAll(ctx context.Context, cfg *schema.SiteConfiguration, uploads []assets.Upload) ([]assets.Stored, error)
}

// Deps are the collaborators a session saves through.
type Deps struct {
	Writer Committer
	Assets Uploader
	// OnTransition, when set, observes every save state change.
	OnTransition func(id string, from, to State)
}

type pendingFile struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// Session is one operator's edit of the configuration. All methods are safe
// for concurrent use; a save holds the session for its whole duration.
type Session struct {
	id     string
	deps   Deps
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	base      schema.SiteConfiguration
	fields    map[string]fieldValue
	invalid   map[string]bool
	sections  sections
	hero      heroPools
	files     map[string]pendingFile
	updatedAt time.Time
}

// New starts a session from cfg.
func New(cfg schema.SiteConfiguration, deps Deps) *Session {
	s := newSession(util.NewID("edit"), deps)
	s.hydrate(cfg)
	return s
}

func newSession(id string, deps Deps) *Session {
	return &Session{
		id:     id,
		deps:   deps,
		logger: sitelog.WithComponent("editor").With().Str(sitelog.FieldSessionID, id).Logger(),
		state:  StateIdle,
	}
}

func (s *Session) hydrate(cfg schema.SiteConfiguration) {
	s.base = cfg.Clone()
	doc, err := json.Marshal(s.base)
	if err != nil {
		// SiteConfiguration always encodes
		panic(fmt.Sprintf("editor: encode configuration: %v", err))
	}
	s.fields = hydrateFields(doc)
	s.invalid = map[string]bool{}
	for _, key := range schema.RequiredFields {
		s.checkRequired(key)
	}
	s.sections = newSections(s.base)
	s.hero = splitHero(s.base.Home.Hero.BackgroundImages, galleryOptions(s.base.Home.Gallery.Items))
	s.files = map[string]pendingFile{}
	s.touch()
}

func (s *Session) touch() {
	s.updatedAt = time.Now().UTC()
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) checkRequired(key string) {
	if fieldProblem(key, s.fields[key]) {
		s.invalid[key] = true
		return
	}
	delete(s.invalid, key)
}

func lookupField(key string) (fieldSpec, error) {
	if isDerived(key) {
		return fieldSpec{}, fmt.Errorf("%w: %s", ErrDerivedField, key)
	}
	spec, ok := fieldIndex[key]
	if !ok {
		return fieldSpec{}, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	return spec, nil
}

func (s *Session) fieldState(spec fieldSpec) FieldState {
	value := s.fields[spec.key]
	return FieldState{
		Key:      spec.key,
		Kind:     spec.kind,
		Value:    value.Text,
		Items:    value.Items,
		Enabled:  value.Enabled,
		Required: requiredIndex[spec.key],
		Invalid:  s.invalid[spec.key],
	}
}

func (s *Session) Field(key string) (FieldState, error) {
	spec, err := lookupField(key)
	if err != nil {
		return FieldState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldState(spec), nil
}

// SetField stores the raw form value for key and re-checks that key only.
// The enable toggle of an optional field is left as it is.
func (s *Session) SetField(key, value string) (FieldState, error) {
	spec, err := lookupField(key)
	if err != nil {
		return FieldState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.fields[key]
	current.Text = value
	if spec.kind == KindList {
		current.Items = splitList(value)
	}
	s.fields[key] = current
	s.checkRequired(key)
	s.touch()
	return s.fieldState(spec), nil
}

// SetList replaces the entries of a list field. Entries are kept verbatim
// apart from trimming, so they may contain commas.
func (s *Session) SetList(key string, items []string) (FieldState, error) {
	spec, err := lookupField(key)
	if err != nil {
		return FieldState{}, err
	}
	if spec.kind != KindList {
		return FieldState{}, fmt.Errorf("%w: %s", ErrNotList, key)
	}
	kept := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[key] = listValue(kept)
	s.checkRequired(key)
	s.touch()
	return s.fieldState(spec), nil
}

func (s *Session) SetEnabled(key string, enabled bool) (FieldState, error) {
	spec, err := lookupField(key)
	if err != nil {
		return FieldState{}, err
	}
	if spec.kind != KindOptional {
		return FieldState{}, fmt.Errorf("%w: %s", ErrNotOptional, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.fields[key]
	current.Enabled = enabled
	s.fields[key] = current
	s.touch()
	return s.fieldState(spec), nil
}

// InvalidFields returns the required keys that currently fail, in form order.
func (s *Session) InvalidFields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidFields()
}

func (s *Session) invalidFields() []string {
	keys := []string{}
	for _, key := range schema.RequiredFields {
		if s.invalid[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *Session) Section(key string) (SectionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	section, ok := s.sections.get(key)
	if !ok {
		return SectionView{}, fmt.Errorf("%w: %s", ErrUnknownSection, key)
	}
	return section.view(key), nil
}

// SetSectionText records raw text for a section. Text that does not parse
// flags the section and leaves its value unchanged; the returned view says
// which happened.
func (s *Session) SetSectionText(key, text string) (SectionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	section, ok := s.sections.get(key)
	if !ok {
		return SectionView{}, fmt.Errorf("%w: %s", ErrUnknownSection, key)
	}
	if err := section.SetText(text); err == nil {
		s.sectionChanged(key)
	} else {
		s.logger.Debug().Str("section", key).Err(err).Msg("section text does not parse")
	}
	s.touch()
	return section.view(key), nil
}

// sectionChanged keeps cross references consistent after key's value changed.
func (s *Session) sectionChanged(key string) {
	switch key {
	case SectionGalleryItems:
		items := s.sections.galleryItems.value
		s.hero.prune(galleryOptions(items))
		s.dropFiles(assets.FieldGalleryImage, len(items))
	case SectionAccreditations:
		s.dropFiles(assets.FieldAccreditationLogo, len(s.sections.accreditations.value))
	}
}

// dropFiles forgets pending files of kind whose index no longer exists.
func (s *Session) dropFiles(kind assets.FieldKind, length int) {
	for name := range s.files {
		field, err := assets.ParseField(name)
		if err == nil && field.Kind == kind && field.Index >= length {
			delete(s.files, name)
		}
	}
}

func (s *Session) Services() []schema.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sections.services.Value()
}

func (s *Session) GalleryItems() []schema.GalleryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sections.galleryItems.Value()
}

func (s *Session) SetServices(services []schema.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections.services.Set(services)
	s.touch()
}

// UpdateService replaces the service at index i.
func (s *Session) UpdateService(i int, service schema.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	services := s.sections.services.Value()
	if i < 0 || i >= len(services) {
		return fmt.Errorf("%w: service %d", ErrIndexOutOfRange, i)
	}
	services[i] = service
	s.sections.services.Set(services)
	s.touch()
	return nil
}

func (s *Session) SetAreas(areas []schema.Area) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections.areas.Set(areas)
	s.touch()
}

func (s *Session) SetNavigation(links []schema.NavLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections.navigation.Set(links)
	s.touch()
}

func (s *Session) SetAccreditations(items []schema.Accreditation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections.accreditations.Set(items)
	s.sectionChanged(SectionAccreditations)
	s.touch()
}

func (s *Session) SetKeywords(keywords []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections.keywords.Set(keywords)
	s.touch()
}

func (s *Session) SetProcessSteps(steps []schema.ProcessStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections.processSteps.Set(steps)
	s.touch()
}

func (s *Session) SetGalleryItems(items []schema.GalleryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections.galleryItems.Set(items)
	s.sectionChanged(SectionGalleryItems)
	s.touch()
}

func (s *Session) SetReviews(reviews []schema.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections.reviews.Set(reviews)
	s.touch()
}

// ToggleServiceGallery selects or deselects a gallery image for service i.
// The service's gallery is kept in gallery order.
func (s *Session) ToggleServiceGallery(i int, ref schema.AssetRef, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	services := s.sections.services.Value()
	if i < 0 || i >= len(services) {
		return fmt.Errorf("%w: service %d", ErrIndexOutOfRange, i)
	}
	options := galleryOptions(s.sections.galleryItems.value)
	if selected && !refSet(options)[ref] {
		return fmt.Errorf("%w: %s", ErrUnknownImage, ref)
	}
	services[i].Gallery = toggle(services[i].Gallery, ref, selected, options)
	s.sections.services.Set(services)
	s.touch()
	return nil
}

// SelectHeroImage adds or removes a gallery image from the hero selection.
func (s *Session) SelectHeroImage(ref schema.AssetRef, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	options := galleryOptions(s.sections.galleryItems.value)
	if !refSet(options)[ref] {
		return fmt.Errorf("%w: %s", ErrUnknownImage, ref)
	}
	s.hero.Selected = toggle(s.hero.Selected, ref, selected, options)
	s.touch()
	return nil
}

// AddHeroUpload queues a hero-only image and returns its position in the
// hero-only pool.
func (s *Session) AddHeroUpload(filename string, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, assets.ErrEmptyUpload
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hero.Uploads = append(s.hero.Uploads, heroUpload{Filename: filename, Data: append([]byte(nil), data...)})
	s.touch()
	return len(s.hero.Uploads) - 1, nil
}

func (s *Session) RemoveHeroUpload(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.hero.Uploads) {
		return fmt.Errorf("%w: hero upload %d", ErrIndexOutOfRange, i)
	}
	s.hero.Uploads = append(s.hero.Uploads[:i], s.hero.Uploads[i+1:]...)
	s.touch()
	return nil
}

// HeroImages returns the derived backgroundImages and backgroundImage.
func (s *Session) HeroImages() ([]schema.AssetRef, schema.Optional[schema.AssetRef]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heroImages()
}

func (s *Session) heroImages() ([]schema.AssetRef, schema.Optional[schema.AssetRef]) {
	images := s.hero.combined()
	if len(images) == 0 {
		return images, schema.None[schema.AssetRef]()
	}
	return images, schema.Some(images[0])
}

// AttachFile queues a file for one of the non-hero upload fields. Zero bytes
// clear a queued file.
func (s *Session) AttachFile(name, filename string, data []byte) error {
	field, err := assets.ParseField(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch field.Kind {
	case assets.FieldHeroImage:
		return fmt.Errorf("%w: %s is managed through hero uploads", assets.ErrUnknownField, name)
	case assets.FieldAccreditationLogo:
		if field.Index >= len(s.sections.accreditations.value) {
			return fmt.Errorf("%w: accreditation %d", ErrIndexOutOfRange, field.Index)
		}
	case assets.FieldGalleryImage:
		if field.Index >= len(s.sections.galleryItems.value) {
			return fmt.Errorf("%w: gallery item %d", ErrIndexOutOfRange, field.Index)
		}
	}
	if len(data) == 0 {
		delete(s.files, field.String())
	} else {
		s.files[field.String()] = pendingFile{Filename: filename, Data: append([]byte(nil), data...)}
	}
	s.touch()
	return nil
}

// PendingFiles lists upload fields waiting for the next save, hero uploads included.
func (s *Session) PendingFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingFiles()
}

func (s *Session) pendingFiles() []string {
	names := make([]string, 0, len(s.files)+len(s.hero.Uploads))
	for i, upload := range s.hero.Uploads {
		if upload.pending() {
			names = append(names, s.hero.uploadField(i))
		}
	}
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) pendingUploads() []assets.Upload {
	uploads := make([]assets.Upload, 0, len(s.files)+len(s.hero.Uploads))
	for name, file := range s.files {
		uploads = append(uploads, assets.Upload{Field: name, Filename: file.Filename, Data: file.Data})
	}
	for i, upload := range s.hero.Uploads {
		if upload.pending() {
			uploads = append(uploads, assets.Upload{Field: s.hero.uploadField(i), Filename: upload.Filename, Data: upload.Data})
		}
	}
	return uploads
}

// Candidate builds the configuration the session would save, without
// uploading pending files or validating.
func (s *Session) Candidate() (schema.SiteConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, malformed, err := s.buildCandidate()
	if err != nil {
		return schema.SiteConfiguration{}, err
	}
	if len(malformed) > 0 {
		return schema.SiteConfiguration{}, &MissingFieldsError{Keys: malformed}
	}
	return cfg, nil
}

// buildCandidate writes every form value over the base document. Number
// fields that do not parse are returned in malformed and left at their base value.
func (s *Session) buildCandidate() (schema.SiteConfiguration, []string, error) {
	doc, err := json.Marshal(s.base)
	if err != nil {
		return schema.SiteConfiguration{}, nil, fmt.Errorf("encode base: %w", err)
	}
	var malformed []string
	for _, spec := range fieldSpecs {
		next, ok, err := writeField(doc, spec, s.fields[spec.key])
		if err != nil {
			return schema.SiteConfiguration{}, nil, fmt.Errorf("set %s: %w", spec.key, err)
		}
		if !ok {
			malformed = append(malformed, spec.key)
			continue
		}
		doc = next
	}
	if doc, err = s.sections.write(doc); err != nil {
		return schema.SiteConfiguration{}, nil, err
	}

	images, first := s.heroImages()
	if doc, err = sjson.SetBytes(doc, heroImagesKey, images); err != nil {
		return schema.SiteConfiguration{}, nil, fmt.Errorf("set %s: %w", heroImagesKey, err)
	}
	if ref, ok := first.Get(); ok {
		doc, err = sjson.SetBytes(doc, heroImageKey, string(ref))
	} else {
		doc, err = sjson.SetRawBytes(doc, heroImageKey, []byte("null"))
	}
	if err != nil {
		return schema.SiteConfiguration{}, nil, fmt.Errorf("set %s: %w", heroImageKey, err)
	}

	var cfg schema.SiteConfiguration
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return schema.SiteConfiguration{}, nil, fmt.Errorf("decode candidate: %w", err)
	}
	return cfg, malformed, nil
}

// HeroUploadView describes one hero-only image.
type HeroUploadView struct {
	Field    string          `json:"field"`
	Ref      schema.AssetRef `json:"ref"`
	Filename string          `json:"filename,omitempty"`
	Pending  bool            `json:"pending"`
}

type HeroView struct {
	Options          []schema.AssetRef                `json:"options"`
	Selected         []schema.AssetRef                `json:"selected"`
	Uploads          []HeroUploadView                 `json:"uploads"`
	BackgroundImages []schema.AssetRef                `json:"backgroundImages"`
	BackgroundImage  schema.Optional[schema.AssetRef] `json:"backgroundImage"`
}

// View is everything an editor UI needs to render the session.
type View struct {
	ID            string        `json:"id"`
	State         State         `json:"state"`
	Fields        []FieldState  `json:"fields"`
	InvalidFields []string      `json:"invalidFields"`
	Sections      []SectionView `json:"sections"`
	Hero          HeroView      `json:"hero"`
	PendingFiles  []string      `json:"pendingFiles"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := View{
		ID:            s.id,
		State:         s.state,
		Fields:        make([]FieldState, 0, len(fieldSpecs)),
		InvalidFields: s.invalidFields(),
		Sections:      make([]SectionView, 0, len(sectionOrder)),
		UpdatedAt:     s.updatedAt,
	}
	for _, spec := range fieldSpecs {
		view.Fields = append(view.Fields, s.fieldState(spec))
	}
	for _, key := range sectionOrder {
		section, _ := s.sections.get(key)
		view.Sections = append(view.Sections, section.view(key))
	}

	images, first := s.heroImages()
	if ref, ok := first.Get(); ok && ref == "" {
		// the first slot is still a pending upload
		first = schema.None[schema.AssetRef]()
	}
	view.Hero = HeroView{
		Options:          galleryOptions(s.sections.galleryItems.value),
		Selected:         append([]schema.AssetRef{}, s.hero.Selected...),
		Uploads:          make([]HeroUploadView, 0, len(s.hero.Uploads)),
		BackgroundImages: images,
		BackgroundImage:  first,
	}
	for i, upload := range s.hero.Uploads {
		view.Hero.Uploads = append(view.Hero.Uploads, HeroUploadView{
			Field:    s.hero.uploadField(i),
			Ref:      upload.Ref,
			Filename: upload.Filename,
			Pending:  upload.pending(),
		})
	}

	view.PendingFiles = s.pendingFiles()
	return view
}

// heroUploadIndex maps a stored hero field back to its hero-only pool entry.
func (s *Session) heroUploadIndex(field assets.Field) (int, bool) {
	i := field.Index - len(s.hero.Selected)
	return i, i >= 0 && i < len(s.hero.Uploads)
}
