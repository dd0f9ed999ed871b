package assets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sitecms/api/internal/schema"
)

// FieldKind identifies which part of the configuration an upload field fills.
type FieldKind string

const (
	FieldCompanyLogo       FieldKind = "companyLogo"
	FieldHeroVideo         FieldKind = "heroBackgroundVideo"
	FieldHeroImage         FieldKind = "heroBackgroundImage"
	FieldAccreditationLogo FieldKind = "accreditationLogo"
	FieldGalleryImage      FieldKind = "galleryImage"
)

var (
	ErrUnknownField = errors.New("unknown upload field")
	// ErrNoSlot marks an indexed field whose index has no entry to attach to.
	ErrNoSlot = errors.New("upload field has no matching entry")
)

// Field is a parsed upload field name such as "galleryImage-3".
type Field struct {
	Kind  FieldKind
	Index int
}

var fieldPrefixes = map[FieldKind]string{
	FieldCompanyLogo:       "logo",
	FieldHeroVideo:         "hero-video",
	FieldHeroImage:         "hero",
	FieldAccreditationLogo: "accreditation",
	FieldGalleryImage:      "gallery",
}

// order in which a save stores its uploads
var fieldOrder = map[FieldKind]int{
	FieldCompanyLogo:       0,
	FieldHeroVideo:         1,
	FieldHeroImage:         2,
	FieldAccreditationLogo: 3,
	FieldGalleryImage:      4,
}

func (f Field) indexed() bool {
	return f.Kind == FieldHeroImage || f.Kind == FieldAccreditationLogo || f.Kind == FieldGalleryImage
}

func (f Field) String() string {
	if f.indexed() {
		return string(f.Kind) + "-" + strconv.Itoa(f.Index)
	}
	return string(f.Kind)
}

// Prefix is the stored-name prefix that ties a file back to its field.
func (f Field) Prefix() string {
	return fieldPrefixes[f.Kind]
}

func ParseField(name string) (Field, error) {
	switch FieldKind(name) {
	case FieldCompanyLogo, FieldHeroVideo:
		return Field{Kind: FieldKind(name)}, nil
	}
	dash := strings.LastIndexByte(name, '-')
	if dash <= 0 {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	kind := FieldKind(name[:dash])
	index, err := strconv.Atoi(name[dash+1:])
	if err != nil || index < 0 || name[dash+1:] != strconv.Itoa(index) {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	field := Field{Kind: kind, Index: index}
	if !field.indexed() {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return field, nil
}

// Apply writes ref into the part of cfg that field names.
func Apply(cfg *schema.SiteConfiguration, field Field, ref schema.AssetRef) error {
	switch field.Kind {
	case FieldCompanyLogo:
		cfg.Company.Logo = schema.Some(ref)
	case FieldHeroVideo:
		cfg.Home.Hero.BackgroundVideo = schema.Some(ref)
	case FieldHeroImage:
		hero := &cfg.Home.Hero
		switch {
		case field.Index < len(hero.BackgroundImages):
			hero.BackgroundImages[field.Index] = ref
		case field.Index == len(hero.BackgroundImages):
			hero.BackgroundImages = append(hero.BackgroundImages, ref)
		default:
			return fmt.Errorf("%w: %s: hero has %d background images", ErrNoSlot, field, len(hero.BackgroundImages))
		}
		hero.SyncBackgroundImage()
	case FieldAccreditationLogo:
		if field.Index >= len(cfg.Proof.Accreditations) {
			return fmt.Errorf("%w: %s: there are %d accreditations", ErrNoSlot, field, len(cfg.Proof.Accreditations))
		}
		cfg.Proof.Accreditations[field.Index].Logo = ref
	case FieldGalleryImage:
		if field.Index >= len(cfg.Home.Gallery.Items) {
			return fmt.Errorf("%w: %s: there are %d gallery items", ErrNoSlot, field, len(cfg.Home.Gallery.Items))
		}
		cfg.ReplaceGalleryImage(field.Index, ref)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field.Kind)
	}
	return nil
}

// Upload is one named binary field of a save.
type Upload struct {
	Field    string
	Filename string
	Data     []byte
}

// Stored reports an upload that reached storage.
type Stored struct {
	Field Field
	Ref   schema.AssetRef
}

type pending struct {
	field  Field
	upload Upload
}

// checkTargets makes sure every queued field points at an existing slot, with
// hero images allowed to extend the list in index order.
func checkTargets(cfg *schema.SiteConfiguration, queue []pending) error {
	heroLen := len(cfg.Home.Hero.BackgroundImages)
	for _, item := range queue {
		field := item.field
		switch field.Kind {
		case FieldHeroImage:
			switch {
			case field.Index < heroLen:
			case field.Index == heroLen:
				heroLen++
			default:
				return fmt.Errorf("%w: %s: hero has %d background images", ErrNoSlot, field, heroLen)
			}
		case FieldAccreditationLogo:
			if field.Index >= len(cfg.Proof.Accreditations) {
				return fmt.Errorf("%w: %s: there are %d accreditations", ErrNoSlot, field, len(cfg.Proof.Accreditations))
			}
		case FieldGalleryImage:
			if field.Index >= len(cfg.Home.Gallery.Items) {
				return fmt.Errorf("%w: %s: there are %d gallery items", ErrNoSlot, field, len(cfg.Home.Gallery.Items))
			}
		}
	}
	return nil
}

// StoreAll stores uploads one at a time and applies each reference to cfg.
// Field names are checked before anything is written; zero-byte uploads are
// skipped. The first failure stops the run and the references stored so far
// are returned with the error.
func (p *Pipeline) StoreAll(ctx context.Context, cfg *schema.SiteConfiguration, uploads []Upload) ([]Stored, error) {
	queue := make([]pending, 0, len(uploads))
	for _, upload := range uploads {
		field, err := ParseField(upload.Field)
		if err != nil {
			return nil, err
		}
		if len(upload.Data) == 0 {
			continue
		}
		queue = append(queue, pending{field: field, upload: upload})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i].field, queue[j].field
		if fieldOrder[a.Kind] != fieldOrder[b.Kind] {
			return fieldOrder[a.Kind] < fieldOrder[b.Kind]
		}
		return a.Index < b.Index
	})

	if err := checkTargets(cfg, queue); err != nil {
		return nil, err
	}

	stored := make([]Stored, 0, len(queue))
	for _, item := range queue {
		if err := ctx.Err(); err != nil {
			return stored, fmt.Errorf("%w: %v", ErrAssetWriteFailed, err)
		}
		ref, err := p.Store(ctx, item.upload.Data, item.upload.Filename, item.field.Prefix())
		if err != nil {
			return stored, err
		}
		if err := Apply(cfg, item.field, ref); err != nil {
			return stored, err
		}
		stored = append(stored, Stored{Field: item.field, Ref: ref})
	}
	return stored, nil
}
