package editor

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"sitecms/api/internal/schema"
)

// FieldKind says how a scalar form field maps onto the document.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindNumber   FieldKind = "number"
	KindList     FieldKind = "list"     // entries; typed as comma separated text
	KindOptional FieldKind = "optional" // enable toggle plus a value
	KindAsset    FieldKind = "asset"
)

type fieldSpec struct {
	key  string
	kind FieldKind
}

// scalar form fields in display order; list-valued sections live in sections.go
var fieldSpecs = []fieldSpec{
	{"company.name", KindText},
	{"company.legalName", KindText},
	{"company.tagline", KindText},
	{"company.description", KindText},
	{"company.foundedYear", KindText},
	{"company.logo", KindOptional},

	{"contact.phone", KindText},
	{"contact.email", KindText},
	{"contact.whatsapp", KindOptional},
	{"contact.address.street", KindText},
	{"contact.address.city", KindText},
	{"contact.address.region", KindText},
	{"contact.address.postcode", KindText},
	{"contact.address.country", KindText},
	{"contact.hours", KindText},
	{"contact.serviceRadius", KindNumber},
	{"contact.areasServed", KindList},

	{"branding.colors.primary", KindText},
	{"branding.colors.secondary", KindText},
	{"branding.colors.accent", KindText},
	{"branding.colors.background", KindText},
	{"branding.colors.text", KindText},
	{"branding.fonts.heading", KindText},
	{"branding.fonts.body", KindText},

	{"proof.rating.averageRating", KindNumber},
	{"proof.rating.reviewCount", KindNumber},
	{"proof.rating.source", KindText},

	{"social.facebook", KindOptional},
	{"social.instagram", KindOptional},
	{"social.linkedin", KindOptional},
	{"social.x", KindOptional},
	{"social.youtube", KindOptional},
	{"social.tiktok", KindOptional},

	{"seo.title", KindText},
	{"seo.description", KindText},
	{"seo.canonicalUrl", KindText},
	{"seo.ogImage", KindAsset},

	{"integrations.reviewsEmbed", KindOptional},
	{"integrations.analyticsId", KindText},
	{"integrations.mapsApiKey", KindText},
	{"integrations.formEndpoint", KindText},

	{"header.ctaLabel", KindText},
	{"header.phoneLabel", KindText},
	{"footer.tagline", KindText},
	{"footer.copyright", KindText},

	{"home.hero.heading", KindText},
	{"home.hero.subheading", KindText},
	{"home.hero.primaryCta", KindText},
	{"home.hero.secondaryCta", KindText},
	{"home.hero.backgroundVideo", KindOptional},
	{"home.services.heading", KindText},
	{"home.services.intro", KindText},
	{"home.services.featuredCount", KindNumber},
	{"home.process.heading", KindText},
	{"home.gallery.heading", KindText},
	{"home.reviews.heading", KindText},
	{"home.areas.heading", KindText},
	{"home.areas.intro", KindText},
	{"home.cta.heading", KindText},
	{"home.cta.body", KindText},
	{"home.cta.buttonLabel", KindText},
}

var fieldIndex = func() map[string]fieldSpec {
	index := make(map[string]fieldSpec, len(fieldSpecs))
	for _, spec := range fieldSpecs {
		index[spec.key] = spec
	}
	return index
}()

const (
	heroImagesKey = "home.hero.backgroundImages"
	heroImageKey  = "home.hero.backgroundImage"
)

func isDerived(key string) bool {
	return key == heroImagesKey || key == heroImageKey
}

var requiredIndex = func() map[string]bool {
	index := make(map[string]bool, len(schema.RequiredFields))
	for _, key := range schema.RequiredFields {
		index[key] = true
	}
	return index
}()

type fieldValue struct {
	Text    string   `json:"text"`
	Enabled bool     `json:"enabled"`
	Items   []string `json:"items,omitempty"` // list fields only
}

// FieldState is the operator-facing view of one scalar field.
type FieldState struct {
	Key      string    `json:"key"`
	Kind     FieldKind `json:"kind"`
	Value    string    `json:"value"`
	Items    []string  `json:"items,omitempty"`
	Enabled  bool      `json:"enabled"`
	Required bool      `json:"required"`
	Invalid  bool      `json:"invalid"`
}

func hydrateFields(doc []byte) map[string]fieldValue {
	values := make(map[string]fieldValue, len(fieldSpecs))
	for _, spec := range fieldSpecs {
		result := gjson.GetBytes(doc, spec.key)
		switch spec.kind {
		case KindOptional:
			if !result.Exists() || result.Type == gjson.Null {
				values[spec.key] = fieldValue{}
				continue
			}
			values[spec.key] = fieldValue{Text: result.String(), Enabled: true}
		case KindList:
			items := result.Array()
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, item.String())
			}
			values[spec.key] = listValue(parts)
		default:
			values[spec.key] = fieldValue{Text: result.String(), Enabled: true}
		}
	}
	return values
}

// fieldProblem reports whether a required field is blank or, for numbers,
// does not parse.
func fieldProblem(key string, value fieldValue) bool {
	if !requiredIndex[key] {
		return false
	}
	text := strings.TrimSpace(value.Text)
	if text == "" {
		return true
	}
	if schema.IsNumericField(key) {
		if _, err := schema.ParseNumber(text); err != nil {
			return true
		}
	}
	return false
}

// writeField sets one form value into doc. Malformed numbers are reported
// with ok false and leave doc unchanged.
func writeField(doc []byte, spec fieldSpec, value fieldValue) (out []byte, ok bool, err error) {
	text := strings.TrimSpace(value.Text)
	switch spec.kind {
	case KindNumber:
		number, perr := schema.ParseNumber(text)
		if perr != nil {
			return doc, false, nil
		}
		out, err = sjson.SetBytes(doc, spec.key, number.Float())
	case KindList:
		items := value.Items
		if items == nil {
			items = splitList(text)
		}
		out, err = sjson.SetBytes(doc, spec.key, items)
	case KindOptional:
		if !value.Enabled {
			out, err = sjson.SetRawBytes(doc, spec.key, []byte("null"))
		} else {
			out, err = sjson.SetBytes(doc, spec.key, text)
		}
	default:
		out, err = sjson.SetBytes(doc, spec.key, text)
	}
	return out, err == nil, err
}

// listValue holds items as entered; Text is only their display form, so an
// entry containing a comma survives an untouched save.
func listValue(items []string) fieldValue {
	items = append([]string{}, items...)
	return fieldValue{Text: strings.Join(items, ", "), Enabled: true, Items: items}
}

func splitList(text string) []string {
	items := []string{}
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
