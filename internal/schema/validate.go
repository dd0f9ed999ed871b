package schema

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// RequiredFields are the JSON paths that must be non-blank before a save is accepted.
var RequiredFields = []string{
	"company.name",
	"company.tagline",
	"contact.phone",
	"contact.email",
	"contact.address.city",
	"contact.address.postcode",
	"contact.serviceRadius",
	"proof.rating.averageRating",
	"proof.rating.reviewCount",
	"seo.title",
	"seo.description",
	"home.hero.heading",
	"home.services.featuredCount",
}

// NumericFields are the JSON paths holding a Number.
var NumericFields = []string{
	"contact.serviceRadius",
	"proof.rating.averageRating",
	"proof.rating.reviewCount",
	"home.services.featuredCount",
}

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError carries every issue found in a configuration.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid configuration"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Path+": "+issue.Message)
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Paths returns the issue paths in report order.
func (e *ValidationError) Paths() []string {
	paths := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		paths = append(paths, issue.Path)
	}
	return paths
}

type validator struct {
	issues []Issue
}

func (v *validator) add(path, format string, args ...any) {
	v.issues = append(v.issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) required(path, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(path, "is required")
	}
}

func (v *validator) color(path, value string) {
	if value != "" && !colorPattern.MatchString(value) {
		v.add(path, "must be a hex colour like #1a2b3c")
	}
}

func (v *validator) count(path string, n Number) {
	if n < 0 || !n.IsWhole() {
		v.add(path, "must be a whole number of zero or more")
	}
}

func (v *validator) slugs(collection string, slugs []string) {
	seen := make(map[string]int, len(slugs))
	for i, slug := range slugs {
		path := fmt.Sprintf("%s[%d].slug", collection, i)
		if !slugPattern.MatchString(slug) {
			v.add(path, "must be lower-case letters, digits and single hyphens")
			continue
		}
		if first, ok := seen[slug]; ok {
			v.add(path, "duplicates %s[%d].slug %q", collection, first, slug)
			continue
		}
		seen[slug] = i
	}
}

// Validate checks cfg against the structural rules and returns a *ValidationError
// listing every issue, or nil.
func Validate(cfg SiteConfiguration) error {
	v := &validator{}

	v.required("company.name", cfg.Company.Name)
	v.required("company.tagline", cfg.Company.Tagline)
	v.required("contact.phone", cfg.Contact.Phone)
	v.required("contact.email", cfg.Contact.Email)
	if strings.TrimSpace(cfg.Contact.Email) != "" {
		if _, err := mail.ParseAddress(cfg.Contact.Email); err != nil {
			v.add("contact.email", "must be an email address")
		}
	}
	v.required("contact.address.city", cfg.Contact.Address.City)
	v.required("contact.address.postcode", cfg.Contact.Address.Postcode)
	if cfg.Contact.ServiceRadius < 0 {
		v.add("contact.serviceRadius", "must be zero or more")
	}
	if cfg.Proof.Rating.AverageRating < 0 || cfg.Proof.Rating.AverageRating > 5 {
		v.add("proof.rating.averageRating", "must be between 0 and 5")
	}
	v.count("proof.rating.reviewCount", cfg.Proof.Rating.ReviewCount)
	v.count("home.services.featuredCount", cfg.Home.Services.FeaturedCount)
	v.required("seo.title", cfg.SEO.Title)
	v.required("seo.description", cfg.SEO.Description)
	v.required("home.hero.heading", cfg.Home.Hero.Heading)

	v.color("branding.colors.primary", cfg.Branding.Colors.Primary)
	v.color("branding.colors.secondary", cfg.Branding.Colors.Secondary)
	v.color("branding.colors.accent", cfg.Branding.Colors.Accent)
	v.color("branding.colors.background", cfg.Branding.Colors.Background)
	v.color("branding.colors.text", cfg.Branding.Colors.Text)

	for i, link := range cfg.Navigation {
		v.required(fmt.Sprintf("navigation[%d].label", i), link.Label)
		v.required(fmt.Sprintf("navigation[%d].href", i), link.Href)
	}
	for i, item := range cfg.Proof.Accreditations {
		v.required(fmt.Sprintf("proof.accreditations[%d].name", i), item.Name)
	}
	for i, review := range cfg.Home.Reviews.Items {
		if review.Rating < 0 || review.Rating > 5 {
			v.add(fmt.Sprintf("home.reviews.items[%d].rating", i), "must be between 0 and 5")
		}
	}

	hero := cfg.Home.Hero
	first, enabled := hero.BackgroundImage.Get()
	switch {
	case len(hero.BackgroundImages) == 0 && enabled:
		v.add("home.hero.backgroundImage", "must be null when there are no background images")
	case len(hero.BackgroundImages) > 0 && (!enabled || first != hero.BackgroundImages[0]):
		v.add("home.hero.backgroundImage", "must equal the first background image")
	}

	serviceSlugs := make([]string, 0, len(cfg.Services))
	for i, service := range cfg.Services {
		serviceSlugs = append(serviceSlugs, service.Slug)
		v.required(fmt.Sprintf("services[%d].name", i), service.Name)
		for j, faq := range service.FAQs {
			v.required(fmt.Sprintf("services[%d].faqs[%d].q", i, j), faq.Q)
		}
	}
	v.slugs("services", serviceSlugs)

	areaSlugs := make([]string, 0, len(cfg.Areas))
	for i, area := range cfg.Areas {
		areaSlugs = append(areaSlugs, area.Slug)
		v.required(fmt.Sprintf("areas[%d].name", i), area.Name)
	}
	v.slugs("areas", areaSlugs)

	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: v.issues}
}

// IsNumericField reports whether path holds a Number.
func IsNumericField(path string) bool {
	for _, candidate := range NumericFields {
		if candidate == path {
			return true
		}
	}
	return false
}
