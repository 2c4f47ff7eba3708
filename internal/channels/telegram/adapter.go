// Package telegram connects the gateway to the Telegram Bot API.
package telegram

import (
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/florence-gateway/backend/internal/models"
)

// ToEvent converts an update into a gateway event. Updates without a private
// chat message are ignored.
func ToEvent(upd tgbotapi.Update, now time.Time) (models.InboundEvent, bool) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return models.InboundEvent{}, false
	}
	// работаем только в личке
	if !msg.Chat.IsPrivate() {
		return models.InboundEvent{}, false
	}

	ev := models.InboundEvent{
		Channel:       models.ChannelTelegram,
		SenderID:      strconv.FormatInt(msg.From.ID, 10),
		RecipientID:   strconv.FormatInt(msg.Chat.ID, 10),
		DisplayName:   displayName(msg.From),
		UpdateProfile: true,
		ReceivedAt:    now,
	}

	switch {
	case len(msg.Photo) > 0:
		// последний размер самый большой
		p := msg.Photo[len(msg.Photo)-1]
		ev.Kind = models.EventMedia
		ev.Body = msg.Caption
		ev.Attachments = []models.Attachment{{Ref: p.FileID, MimeType: "image/jpeg"}}

	case msg.Document != nil:
		d := msg.Document
		ev.Body = msg.Caption
		ev.Attachments = []models.Attachment{{Ref: d.FileID, MimeType: d.MimeType, FileName: d.FileName}}
		if strings.HasPrefix(d.MimeType, "image/") {
			ev.Kind = models.EventMedia
		} else {
			ev.Kind = models.EventDocument
		}

	case strings.TrimSpace(msg.Text) != "":
		ev.Body = strings.TrimSpace(msg.Text)
		ev.Kind, ev.Command = models.ClassifyText(ev.Body)

	default:
		ev.Kind = models.EventOther
	}

	return ev, true
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.UserName
	}
	return name
}
