// Package leads accepts enquiries from the public contact form and relays
// them to the site owner.
package leads

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"sitecms/api/internal/email"
	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
)

const MaxMessageLength = 2000

var ErrRelayFailed = errors.New("lead could not be delivered")

// Lead is one contact form submission.
type Lead struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Postcode string `json:"postcode"`
	Service  string `json:"service"`
	Message  string `json:"message,omitempty"`
	Consent  bool   `json:"consent"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem with a submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid lead: " + strings.Join(parts, "; ")
}

// Notifier delivers a lead to the owner.
type Notifier interface {
	IsConfigured() bool
	SendLeadNotification(to string, data email.LeadData) error
}

// ConfigSource supplies the current site configuration.
type ConfigSource interface {
	Get(ctx context.Context) (schema.SiteConfiguration, error)
}

// Result is the acknowledgement returned to the form.
type Result struct {
	OK   bool `json:"ok"`
	Demo bool `json:"demo,omitempty"`
}

type Service struct {
	source   ConfigSource
	notifier Notifier
	now      func() time.Time
}

func NewService(source ConfigSource, notifier Notifier) *Service {
	return &Service{source: source, notifier: notifier, now: time.Now}
}

// Submit validates lead against the current configuration and relays it to
// contact.email. Without a configured notifier the lead is acknowledged as a
// demo and not sent anywhere.
func (s *Service) Submit(ctx context.Context, lead Lead) (Result, error) {
	cfg, err := s.source.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load configuration: %w", err)
	}
	lead, err = Validate(lead, cfg.Services)
	if err != nil {
		return Result{}, err
	}

	logger := sitelog.FromContext(ctx, "leads")
	if s.notifier == nil || !s.notifier.IsConfigured() {
		logger.Info().Str(sitelog.FieldEvent, "lead.demo").Str("service", lead.Service).Msg("lead accepted without relay")
		return Result{OK: true, Demo: true}, nil
	}

	data := email.LeadData{
		SiteName:   cfg.Company.Name,
		Name:       lead.Name,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Postcode:   lead.Postcode,
		Service:    lead.Service,
		Message:    lead.Message,
		ReceivedAt: s.now().UTC(),
	}
	if err := s.notifier.SendLeadNotification(cfg.Contact.Email, data); err != nil {
		logger.Error().Err(err).Msg("lead relay failed")
		return Result{}, fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}
	logger.Info().Str(sitelog.FieldEvent, "lead.relayed").Str("service", lead.Service).Msg("lead relayed")
	return Result{OK: true}, nil
}

// Validate trims lead and checks every field. When services are configured
// the chosen service must match one by slug or name, and is returned as
// that service's name.
func Validate(lead Lead, services []schema.Service) (Lead, error) {
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Email = strings.TrimSpace(lead.Email)
	lead.Phone = strings.TrimSpace(lead.Phone)
	lead.Postcode = strings.ToUpper(strings.Join(strings.Fields(lead.Postcode), " "))
	lead.Service = strings.TrimSpace(lead.Service)
	lead.Message = strings.TrimSpace(lead.Message)

	var problems []FieldError
	add := func(field, message string) {
		problems = append(problems, FieldError{Field: field, Message: message})
	}

	if lead.Name == "" {
		add("name", "is required")
	}
	switch {
	case lead.Email == "":
		add("email", "is required")
	default:
		if addr, err := mail.ParseAddress(lead.Email); err != nil || addr.Address != lead.Email {
			add("email", "must be an email address")
		}
	}
	switch digits := countDigits(lead.Phone); {
	case lead.Phone == "":
		add("phone", "is required")
	case digits < 7 || digits > 15 || !phoneChars(lead.Phone):
		add("phone", "must be a phone number")
	}
	switch {
	case lead.Postcode == "":
		add("postcode", "is required")
	case !postcodeShape(lead.Postcode):
		add("postcode", "must be a postcode")
	}
	if lead.Service == "" {
		add("service", "is required")
	} else if len(services) > 0 {
		if name, ok := matchService(lead.Service, services); ok {
			lead.Service = name
		} else {
			add("service", "is not offered")
		}
	}
	if utf8.RuneCountInString(lead.Message) > MaxMessageLength {
		add("message", fmt.Sprintf("must be at most %d characters", MaxMessageLength))
	}
	if !lead.Consent {
		add("consent", "is required")
	}

	if len(problems) > 0 {
		return lead, &ValidationError{Fields: problems}
	}
	return lead, nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func phoneChars(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == ' ', r == '+', r == '-', r == '(', r == ')', r == '.':
		default:
			return false
		}
	}
	return true
}

func postcodeShape(s string) bool {
	if len(s) < 3 || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if r != ' ' && !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return false
		}
	}
	return true
}

func matchService(value string, services []schema.Service) (string, bool) {
	for _, service := range services {
		if strings.EqualFold(value, service.Slug) || strings.EqualFold(value, service.Name) {
			return service.Name, true
		}
	}
	return "", false
}
