// Package whatsapp connects the gateway to a Twilio WhatsApp number.
package whatsapp

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/florence-gateway/backend/internal/models"
)

const addrPrefix = "whatsapp:"

var ErrMissingSender = errors.New("webhook has no sender")

// ParseWebhook converts a Twilio incoming message form into a gateway event.
// PDFs make the event a document; any other media makes it a media prompt.
func ParseWebhook(form url.Values, now time.Time) (models.InboundEvent, error) {
	from := strings.TrimSpace(form.Get("From"))
	if from == "" {
		return models.InboundEvent{}, ErrMissingSender
	}

	ev := models.InboundEvent{
		Channel:     models.ChannelWhatsApp,
		SenderID:    strings.TrimPrefix(from, addrPrefix),
		RecipientID: from,
		DisplayName: strings.TrimSpace(form.Get("ProfileName")),
		Body:        strings.TrimSpace(form.Get("Body")),
		ReceivedAt:  now,
	}

	numMedia := 0
	if s := form.Get("NumMedia"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return models.InboundEvent{}, fmt.Errorf("invalid NumMedia %q", s)
		}
		numMedia = n
	}

	var docs, media []models.Attachment
	for i := 0; i < numMedia; i++ {
		ref := form.Get(fmt.Sprintf("MediaUrl%d", i))
		if ref == "" {
			continue
		}
		att := models.Attachment{Ref: ref, MimeType: form.Get(fmt.Sprintf("MediaContentType%d", i))}
		if att.MimeType == "application/pdf" {
			docs = append(docs, att)
		} else {
			media = append(media, att)
		}
	}

	switch {
	case len(docs) > 0:
		ev.Kind = models.EventDocument
		ev.Attachments = docs
	case len(media) > 0:
		ev.Kind = models.EventMedia
		ev.Attachments = media
	case ev.Body != "":
		ev.Kind, ev.Command = models.ClassifyText(ev.Body)
	default:
		ev.Kind = models.EventOther
	}
	return ev, nil
}
