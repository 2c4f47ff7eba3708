// Package rewards holds the token grant and streak rules. Functions here only
// mutate the record they are given and never perform I/O.
package rewards

import (
	"time"

	"github.com/florence-gateway/backend/internal/models"
)

const (
	// IdleThreshold: балансы выше порога бонус не получают.
	IdleThreshold    = 4
	IdleInterval     = 8 * time.Hour
	IdleRewardTokens = 10

	StreakBreakGap        = 48 * time.Hour
	StreakMilestone       = 10
	StreakMilestoneTokens = 10
)

// StreakOutcome reports what EvaluateStreak did to the record.
type StreakOutcome struct {
	Broken   bool
	Advanced bool
	Reward   int
}

// EvaluateIdleReward grants IdleRewardTokens per full IdleInterval elapsed since
// the last automatic grant, but only to users at or below IdleThreshold.
func EvaluateIdleReward(user *models.UserRecord, now time.Time) int {
	if user.Tokens > IdleThreshold {
		return 0
	}
	elapsed := now.Sub(user.LastTokenReward)
	if elapsed < IdleInterval {
		return 0
	}

	rewardCount := int(elapsed / IdleInterval)
	awarded := rewardCount * IdleRewardTokens
	user.Tokens += awarded
	user.LastTokenReward = now
	return awarded
}

// EvaluateStreak applies the daily streak rules in loc. A gap of more than
// StreakBreakGap since the last activity resets the streak; otherwise a new
// calendar day relative to StreakDate advances it by one.
//
// The calendar check is by date, not a rolling 24h window: two messages 20h
// apart across midnight advance the streak, the same gap within one day does not.
func EvaluateStreak(user *models.UserRecord, now time.Time, loc *time.Location) StreakOutcome {
	if loc == nil {
		loc = time.UTC
	}

	if now.Sub(user.LastActivity) > StreakBreakGap {
		user.Streak = 0
		user.StreakDate = now
		return StreakOutcome{Broken: true}
	}

	if SameDay(now, user.StreakDate, loc) {
		return StreakOutcome{}
	}

	user.Streak++
	user.StreakDate = now

	out := StreakOutcome{Advanced: true}
	if user.Streak%StreakMilestone == 0 {
		user.Tokens += StreakMilestoneTokens
		out.Reward = StreakMilestoneTokens
	}
	return out
}

func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
