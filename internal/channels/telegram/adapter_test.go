package telegram

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/florence-gateway/backend/internal/models"
)

var now = time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

func privateMessage() *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42, FirstName: "Ada", LastName: "Lovelace"},
		Chat: &tgbotapi.Chat{ID: 42, Type: "private"},
	}
}

func TestToEvent(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(m *tgbotapi.Message)
		wantKind models.EventKind
		wantCmd  string
		wantMime string
	}{
		{"text", func(m *tgbotapi.Message) { m.Text = " hello " }, models.EventText, "", ""},
		{"command", func(m *tgbotapi.Message) { m.Text = "/Start@florence_bot" }, models.EventCommand, "/start", ""},
		{"photo", func(m *tgbotapi.Message) {
			m.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}}
			m.Caption = "what is this"
		}, models.EventMedia, "", "image/jpeg"},
		{"pdf", func(m *tgbotapi.Message) {
			m.Document = &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf", FileName: "receipt.pdf"}
		}, models.EventDocument, "", "application/pdf"},
		{"image sent as file", func(m *tgbotapi.Message) {
			m.Document = &tgbotapi.Document{FileID: "doc", MimeType: "image/png"}
		}, models.EventMedia, "", "image/png"},
		{"sticker", func(m *tgbotapi.Message) { m.Sticker = &tgbotapi.Sticker{FileID: "s"} }, models.EventOther, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := privateMessage()
			tt.mutate(msg)

			ev, ok := ToEvent(tgbotapi.Update{Message: msg}, now)
			if !ok {
				t.Fatal("expected event")
			}
			if ev.Kind != tt.wantKind || ev.Command != tt.wantCmd {
				t.Errorf("kind=%s cmd=%q, want %s %q", ev.Kind, ev.Command, tt.wantKind, tt.wantCmd)
			}
			if ev.SenderID != "42" || ev.RecipientID != "42" || ev.DisplayName != "Ada Lovelace" || !ev.UpdateProfile {
				t.Errorf("unexpected identity: %+v", ev)
			}
			if tt.wantMime != "" && (len(ev.Attachments) != 1 || ev.Attachments[0].MimeType != tt.wantMime) {
				t.Errorf("attachments = %+v", ev.Attachments)
			}
		})
	}
}

func TestToEvent_PhotoUsesLargestSize(t *testing.T) {
	msg := privateMessage()
	msg.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}}

	ev, _ := ToEvent(tgbotapi.Update{Message: msg}, now)
	if ev.Attachments[0].Ref != "big" {
		t.Errorf("ref = %s, want big", ev.Attachments[0].Ref)
	}
}

func TestToEvent_Ignored(t *testing.T) {
	group := privateMessage()
	group.Chat.Type = "group"
	group.Text = "hi"

	for name, upd := range map[string]tgbotapi.Update{
		"no message": {},
		"group chat": {Message: group},
	} {
		if _, ok := ToEvent(upd, now); ok {
			t.Errorf("%s: expected update to be ignored", name)
		}
	}
}

func TestDisplayNameFallsBackToUsername(t *testing.T) {
	if got := displayName(&tgbotapi.User{UserName: "ada"}); got != "ada" {
		t.Errorf("displayName = %q", got)
	}
}
