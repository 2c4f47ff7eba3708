package whatsapp

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/florence-gateway/backend/internal/models"
)

var now = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func form(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func TestParseWebhook(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		wantKind  models.EventKind
		wantCmd   string
		wantAtt   int
		wantFirst string
	}{
		{"text", form("From", "whatsapp:+2348000000000", "Body", "hello"), models.EventText, "", 0, ""},
		{"command", form("From", "whatsapp:+2348000000000", "Body", "/tokens"), models.EventCommand, "/tokens", 0, ""},
		{"two images", form("From", "whatsapp:+2348000000000", "NumMedia", "2",
			"MediaUrl0", "https://m/0", "MediaContentType0", "image/jpeg",
			"MediaUrl1", "https://m/1", "MediaContentType1", "image/png"), models.EventMedia, "", 2, "https://m/0"},
		{"receipt", form("From", "whatsapp:+2348000000000", "NumMedia", "2",
			"MediaUrl0", "https://m/0", "MediaContentType0", "image/jpeg",
			"MediaUrl1", "https://m/1", "MediaContentType1", "application/pdf"), models.EventDocument, "", 1, "https://m/1"},
		{"audio", form("From", "whatsapp:+2348000000000", "NumMedia", "1",
			"MediaUrl0", "https://m/0", "MediaContentType0", "audio/ogg"), models.EventMedia, "", 1, "https://m/0"},
		{"empty", form("From", "whatsapp:+2348000000000"), models.EventOther, "", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseWebhook(tt.form, now)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if ev.Kind != tt.wantKind || ev.Command != tt.wantCmd {
				t.Errorf("kind=%s cmd=%q", ev.Kind, ev.Command)
			}
			if len(ev.Attachments) != tt.wantAtt {
				t.Fatalf("attachments = %d, want %d", len(ev.Attachments), tt.wantAtt)
			}
			if tt.wantAtt > 0 && ev.Attachments[0].Ref != tt.wantFirst {
				t.Errorf("first attachment = %s", ev.Attachments[0].Ref)
			}
			if ev.SenderID != "+2348000000000" || ev.RecipientID != "whatsapp:+2348000000000" || ev.UpdateProfile {
				t.Errorf("unexpected identity: %+v", ev)
			}
		})
	}
}

func TestParseWebhook_Errors(t *testing.T) {
	if _, err := ParseWebhook(form("Body", "hi"), now); !errors.Is(err, ErrMissingSender) {
		t.Errorf("expected ErrMissingSender, got %v", err)
	}
	if _, err := ParseWebhook(form("From", "whatsapp:+1", "NumMedia", "x"), now); err == nil {
		t.Error("expected error for bad NumMedia")
	}
}
