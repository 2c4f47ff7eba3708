package models

import (
	"strings"
	"time"
)

type EventKind string

const (
	EventText     EventKind = "text"
	EventMedia    EventKind = "media"
	EventDocument EventKind = "document"
	EventCommand  EventKind = "command"
	EventOther    EventKind = "other"
)

type Attachment struct {
	Ref      string `json:"ref"` // file id (telegram) or media URL (whatsapp)
	MimeType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// InboundEvent is what channel adapters hand to the gateway.
type InboundEvent struct {
	Kind          EventKind    `json:"kind"`
	Channel       Channel      `json:"channel"`
	SenderID      string       `json:"sender_id"`
	RecipientID   string       `json:"recipient_id"` // where replies go (chat id / phone number)
	DisplayName   string       `json:"display_name"`
	UpdateProfile bool         `json:"update_profile"`
	Body          string       `json:"body,omitempty"`
	Command       string       `json:"command,omitempty"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	ReceivedAt    time.Time    `json:"received_at"`
}

func (e InboundEvent) UserKey() string {
	return UserKey(e.Channel, e.SenderID)
}

// ClassifyText returns EventCommand for "/cmd ..." bodies and EventText otherwise,
// together with the normalized command name.
func ClassifyText(body string) (EventKind, string) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "/") {
		return EventText, ""
	}
	cmd := strings.Fields(body)[0]
	// telegram appends @botname in groups
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return EventCommand, strings.ToLower(cmd)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
