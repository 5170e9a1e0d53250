package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRenderPickupEscapesInput(t *testing.T) {
	html, err := Render("pickup", map[string]string{
		"CustomerName": "<b>Ann</b>",
		"ProgramName":  "Island Tour",
		"ActivityDate": "2026-10-03",
		"PickupTime":   "07:45",
		"Hotel":        "Sea View",
		"BookingRef":   "BK-1",
		"CompanyName":  "Acme",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "07:45") || !strings.Contains(html, "Sea View") {
		t.Fatalf("missing pickup details: %s", html)
	}
	if strings.Contains(html, "<b>Ann</b>") {
		t.Fatal("customer name was not escaped")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := Render("nope", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestBuildStripsHeaderInjection(t *testing.T) {
	raw := string(build("desk@acme.test", Message{To: []string{"a@x.test"}, Subject: "Hi\r\nBcc: evil@x.test", HTML: "<p>x</p>"}, time.Now()))
	if strings.Contains(raw, "\r\nBcc:") {
		t.Fatalf("header injection survived: %q", raw)
	}
	if !strings.Contains(raw, "Content-Type: text/html") {
		t.Fatal("missing content type")
	}
}

func TestDisabledSender(t *testing.T) {
	if err := (Disabled{}).Send(context.Background(), Message{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("got %v", err)
	}
}
