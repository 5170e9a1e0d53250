// Package mailer renders and sends the outbound emails of the back office.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// ErrDisabled is returned by Disabled for every send.
var ErrDisabled = errors.New("outbound email is not configured")

// Message is one HTML email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP sends through an authenticated SMTP relay.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (s SMTP) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("message has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	if err := smtp.SendMail(addr, auth, s.From, msg.To, build(s.From, msg, time.Now())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Disabled refuses to send. It stands in when SMTP is not configured so the
// caller gets a clear error instead of a dial failure.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) error { return ErrDisabled }

func build(from string, msg Message, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// --- Templates ---

var templates = template.Must(template.New("mail").Parse(`
{{define "pickup"}}<p>Dear {{.CustomerName}},</p>
<p>Your pickup for <strong>{{.ProgramName}}</strong> on {{.ActivityDate}} is scheduled at <strong>{{.PickupTime}}</strong> from {{.Hotel}}{{if .RoomNo}} (room {{.RoomNo}}){{end}}.</p>
<p>Please be ready in the lobby a few minutes early. Booking reference: {{.BookingRef}}.</p>
<p>{{.CompanyName}}</p>{{end}}

{{define "confirmation"}}<p>Dear {{.CustomerName}},</p>
<p>Your booking <strong>{{.BookingRef}}</strong> for {{.ProgramName}} on {{.ActivityDate}} is confirmed.</p>
<p>Guests: {{.Adults}} adult(s), {{.Children}} child(ren), {{.Infants}} infant(s).</p>
{{if eq .Transport "pickup"}}<p>We will pick you up from {{.Hotel}}{{if .PickupTime}} at {{.PickupTime}}{{end}}.</p>{{else}}<p>Please come directly to the meeting point.</p>{{end}}
<p>{{.CompanyName}}</p>{{end}}

{{define "op_report"}}<h2>Operations report {{.Date}}</h2>
<p>{{.CompanyName}}: {{.TotalBookings}} booking(s), {{.TotalPax}} guest(s), {{.TotalPickups}} pickup(s).</p>
{{range .Programs}}<h3>{{.ProgramName}} ({{.Pax}} pax)</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Ref</th><th>Guest</th><th>A/C/I</th><th>Pickup</th><th>Hotel</th><th>Agent</th><th>Collect</th></tr>
{{range .Lines}}<tr><td>{{.BookingRef}}</td><td>{{.CustomerName}}</td><td>{{.Adults}}/{{.Children}}/{{.Infants}}</td><td>{{.PickupTime}}</td><td>{{.Hotel}}</td><td>{{.AgentName}}</td><td>{{.Collect}}</td></tr>
{{end}}</table>{{else}}<p>No bookings.</p>{{end}}{{end}}

{{define "test"}}<p>This is a test email from {{.CompanyName}}.</p><p>Sent at {{.SentAt}}.</p>{{end}}
`))

// Render executes one of the named templates: pickup, confirmation,
// op_report or test.
func Render(name string, data interface{}) (string, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}
