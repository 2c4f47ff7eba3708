package services

import (
	"fmt"
	"strings"

	"github.com/florence-gateway/backend/internal/models"
	"github.com/florence-gateway/backend/internal/payproof"
	"github.com/florence-gateway/backend/internal/rewards"
)

const (
	replyApology          = "Sorry, something went wrong on our side. Please try again in a moment."
	replyUnsupportedEvent = "I can read text, images and PDF payment receipts. Please send one of those."
	replyNeedRequest      = "To top up, send /payments first, then upload your PDF receipt."
	replyTooMany          = "Please send at most %d images at a time."
	replyUnsupportedMime  = "I can only look at JPEG, PNG, GIF or WebP images."
)

func replyWelcome(u *models.UserRecord, isNew bool) string {
	var b strings.Builder
	if isNew {
		fmt.Fprintf(&b, "Hi %s, I'm Florence! ", firstName(u.DisplayName))
	} else {
		fmt.Fprintf(&b, "Welcome back, %s! ", firstName(u.DisplayName))
	}
	fmt.Fprintf(&b, "Ask me anything or send me a picture.\n\nYou have %d tokens. A text message costs %d token, each image costs %d.\n\n", u.Tokens, TextCost, MediaCost)
	b.WriteString("/tokens - your balance\n/streak - your daily streak\n/payments - buy more tokens\n/about - about me")
	if u.ReferralCode != "" {
		fmt.Fprintf(&b, "\n\nYour referral code: %s", u.ReferralCode)
	}
	return b.String()
}

func replyAbout() string {
	return "I'm Florence, an AI assistant you can chat with here. " +
		"Every message uses tokens. When you run low I top you up for free every few hours, " +
		"and chatting on consecutive days builds a streak with bonus tokens."
}

func replyTokens(u *models.UserRecord) string {
	msg := fmt.Sprintf("You have %d tokens.", u.Tokens)
	if u.Tokens <= rewards.IdleThreshold {
		next := u.LastTokenReward.Add(rewards.IdleInterval)
		msg += fmt.Sprintf(" Free top-up of %d tokens after %s UTC, or send /payments to buy more.",
			rewards.IdleRewardTokens, next.UTC().Format("Jan 2 15:04"))
	}
	return msg
}

func replyStreak(u *models.UserRecord) string {
	if u.Streak == 0 {
		return "Your streak is 0 days. Come back tomorrow to start one!"
	}
	left := rewards.StreakMilestone - u.Streak%rewards.StreakMilestone
	return fmt.Sprintf("Your streak is %d days. %d more to your next %d-token bonus.",
		u.Streak, left, rewards.StreakMilestoneTokens)
}

func replyPaymentInstructions(grant int) string {
	return fmt.Sprintf("To get %d tokens, pay %s via %s with \"Florence\" in the narration, "+
		"then upload the PDF receipt here within 24 hours.", grant, payproof.ExpectedAmount, payproof.ExpectedPlatform)
}

func replyNoTokens() string {
	return "You're out of tokens. Send /payments to top up, or wait for your free top-up."
}

func replyPaymentAccepted(granted, balance int) string {
	return fmt.Sprintf("Payment confirmed! %d tokens added, you now have %d.", granted, balance)
}

func replyPaymentRejected(reason string) string {
	return fmt.Sprintf("I couldn't verify this receipt: %s. Please check it and upload again.", reason)
}

// notices describes what Observe changed, appended after the main reply.
func notices(obs *Observation) string {
	var parts []string
	if obs.Streak.Broken {
		parts = append(parts, "Your streak was reset. Chat daily to build it back up!")
	}
	if obs.Streak.Reward > 0 {
		parts = append(parts, fmt.Sprintf("%d-day streak! +%d tokens.", obs.User.Streak, obs.Streak.Reward))
	}
	if obs.IdleReward > 0 {
		parts = append(parts, fmt.Sprintf("You received %d free tokens.", obs.IdleReward))
	}
	return strings.Join(parts, "\n")
}

func firstName(name string) string {
	f := strings.Fields(name)
	if len(f) == 0 {
		return "there"
	}
	return f[0]
}
