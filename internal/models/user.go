package models

import (
	"time"
)

type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	return c == ChannelTelegram || c == ChannelWhatsApp
}

// UserRecord is one end user on one channel. Channels never share balances.
type UserRecord struct {
	ID              string    `json:"id"`
	Channel         Channel   `json:"channel"`
	DisplayName     string    `json:"display_name"`
	Tokens          int       `json:"tokens"`
	Streak          int       `json:"streak"`
	ReferralCode    string    `json:"referral_code,omitempty"`
	LastTokenReward time.Time `json:"last_token_reward"`
	LastActivity    time.Time `json:"last_activity"`
	StreakDate      time.Time `json:"streak_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// Key is the storage key of the record.
func (u *UserRecord) Key() string {
	return UserKey(u.Channel, u.ID)
}

func UserKey(channel Channel, id string) string {
	return string(channel) + ":" + id
}
