package leads

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitecms/api/internal/email"
	"sitecms/api/internal/schema"
)

type staticSource struct{ cfg schema.SiteConfiguration }

func (s staticSource) Get(context.Context) (schema.SiteConfiguration, error) { return s.cfg, nil }

type fakeNotifier struct {
	configured bool
	err        error
	to         string
	sent       []email.LeadData
}

func (n *fakeNotifier) IsConfigured() bool { return n.configured }

func (n *fakeNotifier) SendLeadNotification(to string, data email.LeadData) error {
	if n.err != nil {
		return n.err
	}
	n.to = to
	n.sent = append(n.sent, data)
	return nil
}

func validLead() Lead {
	return Lead{
		Name:     " Ana Diaz ",
		Email:    "ana@example.com",
		Phone:    "+44 (0)7700 900123",
		Postcode: " ox1   2ab ",
		Service:  "heat-pumps",
		Message:  "Quote for a heat pump please.",
		Consent:  true,
	}
}

func TestSubmitRelaysToContactEmail(t *testing.T) {
	notifier := &fakeNotifier{configured: true}
	svc := NewService(staticSource{cfg: schema.Seed()}, notifier)
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	result, err := svc.Submit(context.Background(), validLead())
	require.NoError(t, err)
	assert.Equal(t, Result{OK: true}, result)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "hello@brightline.example", notifier.to)
	sent := notifier.sent[0]
	assert.Equal(t, "Ana Diaz", sent.Name)
	assert.Equal(t, "OX1 2AB", sent.Postcode)
	assert.Equal(t, "Air source heat pumps", sent.Service)
	assert.Equal(t, "Brightline Heating & Cooling", sent.SiteName)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), sent.ReceivedAt)
}

func TestSubmitWithoutNotifierIsDemo(t *testing.T) {
	for _, notifier := range []Notifier{nil, &fakeNotifier{configured: false}} {
		svc := NewService(staticSource{cfg: schema.Seed()}, notifier)
		result, err := svc.Submit(context.Background(), validLead())
		require.NoError(t, err)
		assert.Equal(t, Result{OK: true, Demo: true}, result)
	}
}

func TestSubmitRelayFailure(t *testing.T) {
	notifier := &fakeNotifier{configured: true, err: errors.New("connection refused")}
	svc := NewService(staticSource{cfg: schema.Seed()}, notifier)

	_, err := svc.Submit(context.Background(), validLead())
	require.ErrorIs(t, err, ErrRelayFailed)
}

func TestValidateRules(t *testing.T) {
	services := schema.Seed().Services
	tests := []struct {
		name   string
		mutate func(*Lead)
		field  string
	}{
		{name: "missing name", mutate: func(l *Lead) { l.Name = "  " }, field: "name"},
		{name: "bad email", mutate: func(l *Lead) { l.Email = "ana@" }, field: "email"},
		{name: "display name email", mutate: func(l *Lead) { l.Email = "Ana <ana@example.com>" }, field: "email"},
		{name: "short phone", mutate: func(l *Lead) { l.Phone = "12345" }, field: "phone"},
		{name: "long phone", mutate: func(l *Lead) { l.Phone = "1234567890123456" }, field: "phone"},
		{name: "letters in phone", mutate: func(l *Lead) { l.Phone = "0770 CALL ME" }, field: "phone"},
		{name: "short postcode", mutate: func(l *Lead) { l.Postcode = "OX" }, field: "postcode"},
		{name: "symbols in postcode", mutate: func(l *Lead) { l.Postcode = "OX1-2AB" }, field: "postcode"},
		{name: "unknown service", mutate: func(l *Lead) { l.Service = "roofing" }, field: "service"},
		{name: "missing service", mutate: func(l *Lead) { l.Service = "" }, field: "service"},
		{name: "long message", mutate: func(l *Lead) { l.Message = strings.Repeat("a", MaxMessageLength+1) }, field: "message"},
		{name: "no consent", mutate: func(l *Lead) { l.Consent = false }, field: "consent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := validLead()
			tt.mutate(&lead)
			_, err := Validate(lead, services)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}

func TestValidateAcceptsServiceByNameAndOptionalMessage(t *testing.T) {
	lead := validLead()
	lead.Service = "boiler INSTALLATION"
	lead.Message = ""
	got, err := Validate(lead, schema.Seed().Services)
	require.NoError(t, err)
	assert.Equal(t, "Boiler installation", got.Service)

	lead.Service = "anything at all"
	got, err = Validate(lead, nil)
	require.NoError(t, err)
	assert.Equal(t, "anything at all", got.Service)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	_, err := Validate(Lead{}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"name", "email", "phone", "postcode", "service", "consent"}, fields)
}
