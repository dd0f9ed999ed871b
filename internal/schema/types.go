// Package schema defines the site configuration document and its structural rules.
package schema

import (
	"encoding/json"
	"fmt"
)

// AssetRef is a public path to a stored upload. Empty renders a placeholder.
type AssetRef string

type SiteConfiguration struct {
	Company      Company      `json:"company"`
	Contact      Contact      `json:"contact"`
	Branding     Branding     `json:"branding"`
	Proof        Proof        `json:"proof"`
	Social       Social       `json:"social"`
	SEO          SEO          `json:"seo"`
	Integrations Integrations `json:"integrations"`
	Navigation   []NavLink    `json:"navigation"`
	Header       Header       `json:"header"`
	Footer       Footer       `json:"footer"`
	Home         Home         `json:"home"`
	Services     []Service    `json:"services"`
	Areas        []Area       `json:"areas"`
}

type Company struct {
	Name        string             `json:"name"`
	LegalName   string             `json:"legalName"`
	Tagline     string             `json:"tagline"`
	Description string             `json:"description"`
	FoundedYear string             `json:"foundedYear"`
	Logo        Optional[AssetRef] `json:"logo"`
}

type Contact struct {
	Phone         string           `json:"phone"`
	Email         string           `json:"email"`
	WhatsApp      Optional[string] `json:"whatsapp"`
	Address       Address          `json:"address"`
	Hours         string           `json:"hours"`
	ServiceRadius Number           `json:"serviceRadius"`
	AreasServed   []string         `json:"areasServed"`
}

type Address struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type Branding struct {
	Colors Palette `json:"colors"`
	Fonts  Fonts   `json:"fonts"`
}

type Palette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

type Fonts struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

type Proof struct {
	Accreditations []Accreditation `json:"accreditations"`
	Rating         Rating          `json:"rating"`
}

type Accreditation struct {
	Name string   `json:"name"`
	Logo AssetRef `json:"logo"`
	URL  string   `json:"url"`
}

type Rating struct {
	AverageRating Number `json:"averageRating"`
	ReviewCount   Number `json:"reviewCount"`
	Source        string `json:"source"`
}

// Social is the fixed set of channels. A disabled channel is not rendered.
type Social struct {
	Facebook  Optional[string] `json:"facebook"`
	Instagram Optional[string] `json:"instagram"`
	LinkedIn  Optional[string] `json:"linkedin"`
	X         Optional[string] `json:"x"`
	YouTube   Optional[string] `json:"youtube"`
	TikTok    Optional[string] `json:"tiktok"`
}

type SEO struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	CanonicalURL string   `json:"canonicalUrl"`
	OGImage      AssetRef `json:"ogImage"`
}

type Integrations struct {
	ReviewsEmbed Optional[string] `json:"reviewsEmbed"`
	AnalyticsID  string           `json:"analyticsId"`
	MapsAPIKey   string           `json:"mapsApiKey"`
	FormEndpoint string           `json:"formEndpoint"`
}

type NavLink struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

type Header struct {
	CTALabel   string `json:"ctaLabel"`
	PhoneLabel string `json:"phoneLabel"`
}

type Footer struct {
	Tagline   string `json:"tagline"`
	Copyright string `json:"copyright"`
}

type Home struct {
	Hero     Hero         `json:"hero"`
	Services HomeServices `json:"services"`
	Process  Process      `json:"process"`
	Gallery  Gallery      `json:"gallery"`
	Reviews  Reviews      `json:"reviews"`
	Areas    HomeAreas    `json:"areas"`
	CTA      CallToAction `json:"cta"`
}

// Hero.BackgroundImages and Hero.BackgroundImage are derived by the editor;
// BackgroundImage is always the first entry of BackgroundImages.
type Hero struct {
	Heading          string             `json:"heading"`
	Subheading       string             `json:"subheading"`
	PrimaryCTA       string             `json:"primaryCta"`
	SecondaryCTA     string             `json:"secondaryCta"`
	BackgroundImages []AssetRef         `json:"backgroundImages"`
	BackgroundImage  Optional[AssetRef] `json:"backgroundImage"`
	BackgroundVideo  Optional[AssetRef] `json:"backgroundVideo"`
}

// SyncBackgroundImage sets BackgroundImage from the first BackgroundImages entry.
func (h *Hero) SyncBackgroundImage() {
	if len(h.BackgroundImages) == 0 {
		h.BackgroundImage = None[AssetRef]()
		return
	}
	h.BackgroundImage = Some(h.BackgroundImages[0])
}

type HomeServices struct {
	Heading       string `json:"heading"`
	Intro         string `json:"intro"`
	FeaturedCount Number `json:"featuredCount"`
}

type Process struct {
	Heading string        `json:"heading"`
	Steps   []ProcessStep `json:"steps"`
}

type ProcessStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Gallery struct {
	Heading string        `json:"heading"`
	Items   []GalleryItem `json:"items"`
}

type GalleryItem struct {
	Image   AssetRef `json:"image"`
	Caption string   `json:"caption"`
	Alt     string   `json:"alt"`
}

type Reviews struct {
	Heading string   `json:"heading"`
	Items   []Review `json:"items"`
}

type Review struct {
	Author   string `json:"author"`
	Location string `json:"location"`
	Text     string `json:"text"`
	Rating   int    `json:"rating"`
}

type HomeAreas struct {
	Heading string `json:"heading"`
	Intro   string `json:"intro"`
}

type CallToAction struct {
	Heading     string `json:"heading"`
	Body        string `json:"body"`
	ButtonLabel string `json:"buttonLabel"`
}

type Service struct {
	Slug       string           `json:"slug"`
	Name       string           `json:"name"`
	ShortDesc  string           `json:"shortDesc"`
	LongDesc   string           `json:"longDesc"`
	Features   []string         `json:"features"`
	PriceRange Optional[string] `json:"priceRange"`
	Gallery    []AssetRef       `json:"gallery"`
	FAQs       []FAQ            `json:"faqs"`
}

type FAQ struct {
	Q string `json:"q"`
	A string `json:"a"`
}

type Area struct {
	Slug      string   `json:"slug"`
	Name      string   `json:"name"`
	Postcodes []string `json:"postcodes"`
}

// GalleryImages returns the non-empty gallery item images in gallery order.
func (c SiteConfiguration) GalleryImages() []AssetRef {
	images := make([]AssetRef, 0, len(c.Home.Gallery.Items))
	for _, item := range c.Home.Gallery.Items {
		if item.Image != "" {
			images = append(images, item.Image)
		}
	}
	return images
}

// ReplaceGalleryImage sets gallery item i's image to next. When the old image
// is no longer in the gallery, the hero and service selections that pointed
// at it move to next.
func (c *SiteConfiguration) ReplaceGalleryImage(i int, next AssetRef) {
	old := c.Home.Gallery.Items[i].Image
	c.Home.Gallery.Items[i].Image = next
	if old == "" || old == next {
		return
	}
	for _, image := range c.GalleryImages() {
		if image == old {
			return
		}
	}
	c.Home.Hero.BackgroundImages = ReplaceRef(c.Home.Hero.BackgroundImages, old, next)
	c.Home.Hero.SyncBackgroundImage()
	for j := range c.Services {
		c.Services[j].Gallery = ReplaceRef(c.Services[j].Gallery, old, next)
	}
}

// ReplaceRef returns refs with every old entry swapped for next.
func ReplaceRef(refs []AssetRef, old, next AssetRef) []AssetRef {
	out := make([]AssetRef, len(refs))
	for i, ref := range refs {
		if ref == old {
			ref = next
		}
		out[i] = ref
	}
	return out
}

// Clone returns a deep copy of c.
func (c SiteConfiguration) Clone() SiteConfiguration {
	data, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("schema: marshal for clone: %v", err))
	}
	var out SiteConfiguration
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("schema: unmarshal for clone: %v", err))
	}
	return out
}
