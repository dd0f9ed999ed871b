// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	texttemplate "text/template"
	"time"
)

// ErrNotConfigured is returned when sending without SMTP settings.
var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", headerValue(s.config.FromName), s.config.From)
	}
	return s.config.From
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		s.fromHeader(),
		headerValue(subject),
		body,
	))

	return s.send(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email with a plain text fallback part.
// A non-empty replyTo is set as the Reply-To header.
func (s *Service) SendHTMLEmail(to []string, replyTo, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	boundary := "boundary-sitecms"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	if replyTo != "" {
		fmt.Fprintf(&msg, "Reply-To: %s\r\n", headerValue(replyTo))
	}
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// headerValue strips line breaks so user input cannot add headers.
func headerValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LeadData is the content of a lead notification.
type LeadData struct {
	SiteName   string
	Name       string
	Email      string
	Phone      string
	Postcode   string
	Service    string
	Message    string
	ReceivedAt time.Time
}

// SendLeadNotification emails a new enquiry to the site owner. Replies go to
// the person who sent it.
func (s *Service) SendLeadNotification(to string, data LeadData) error {
	subject := fmt.Sprintf("New enquiry from %s", data.Name)
	if data.Service != "" {
		subject += " about " + data.Service
	}
	html, err := renderTemplate(leadEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render lead template: %w", err)
	}
	text, err := renderTextTemplate(leadTextTemplate, data)
	if err != nil {
		return fmt.Errorf("render lead text: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, data.Email, subject, text, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderTextTemplate(tmpl string, data interface{}) (string, error) {
	t := texttemplate.Must(texttemplate.New("email-text").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const leadTextTemplate = `New enquiry via {{.SiteName}}

Name: {{.Name}}
Email: {{.Email}}
Phone: {{.Phone}}
Postcode: {{.Postcode}}
Service: {{if .Service}}{{.Service}}{{else}}not specified{{end}}
Received: {{.ReceivedAt.Format "2 Jan 2006 15:04 MST"}}

{{.Message}}`

const leadEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New enquiry via {{.SiteName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        th { text-align: left; padding-right: 16px; color: #666; font-weight: normal; }
        .message { background: #f6f8fa; padding: 12px; border-radius: 4px; margin: 20px 0; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.SiteName}}</h1>
    </div>

    <h2>New enquiry from {{.Name}}</h2>

    <table>
        <tr><th>Email</th><td><a href="mailto:{{.Email}}">{{.Email}}</a></td></tr>
        <tr><th>Phone</th><td>{{.Phone}}</td></tr>
        <tr><th>Postcode</th><td>{{.Postcode}}</td></tr>
        <tr><th>Service</th><td>{{if .Service}}{{.Service}}{{else}}not specified{{end}}</td></tr>
    </table>
    {{if .Message}}
    <div class="message">{{.Message}}</div>
    {{end}}
    <div class="footer">
        <p>Received {{.ReceivedAt.Format "2 Jan 2006 15:04 MST"}}. Reply to this email to answer {{.Name}} directly.</p>
    </div>
</body>
</html>`
