package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/florence-gateway/backend/internal/events"
	"github.com/florence-gateway/backend/internal/models"
	"github.com/florence-gateway/backend/internal/repositories"
	"github.com/florence-gateway/backend/internal/rewards"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChannelDefaults is what a brand new user of a channel starts with.
type ChannelDefaults struct {
	InitialTokens int
	InitialStreak int
	ReferralCode  bool
	// UpdateProfile allows later messages to overwrite the display name.
	UpdateProfile bool
}

// Observation is the ledger's view of one inbound event.
type Observation struct {
	User       *models.UserRecord
	IsNew      bool
	IdleReward int
	Streak     rewards.StreakOutcome
}

type LedgerService struct {
	users     repositories.UserStore
	txLog     repositories.TransactionLog
	publisher events.Publisher
	defaults  map[models.Channel]ChannelDefaults
	loc       *time.Location
	locks     *userLocks
	now       func() time.Time
	log       *zap.Logger
}

func NewLedgerService(
	users repositories.UserStore,
	txLog repositories.TransactionLog,
	publisher events.Publisher,
	defaults map[models.Channel]ChannelDefaults,
	loc *time.Location,
	log *zap.Logger,
) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{
		users:     users,
		txLog:     txLog,
		publisher: publisher,
		defaults:  defaults,
		loc:       loc,
		locks:     newUserLocks(),
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// Lock serializes all mutation of one user's record. Hold it for the whole event.
func (s *LedgerService) Lock(key string) func() {
	return s.locks.Lock(key)
}

func (s *LedgerService) Defaults(channel models.Channel) ChannelDefaults {
	return s.defaults[channel]
}

func (s *LedgerService) IsNewUser(ctx context.Context, channel models.Channel, id string) (bool, error) {
	_, err := s.users.Get(ctx, models.UserKey(channel, id))
	if errors.Is(err, repositories.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return false, nil
}

func (s *LedgerService) GetUser(ctx context.Context, channel models.Channel, id string) (*models.UserRecord, error) {
	u, err := s.users.Get(ctx, models.UserKey(channel, id))
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser stores a fresh record with every timestamp set to now.
func (s *LedgerService) CreateUser(ctx context.Context, channel models.Channel, id, displayName string, initialTokens, initialStreak int) (*models.UserRecord, error) {
	return s.createUser(ctx, channel, id, displayName, initialTokens, initialStreak, s.now())
}

func (s *LedgerService) createUser(ctx context.Context, channel models.Channel, id, displayName string, initialTokens, initialStreak int, now time.Time) (*models.UserRecord, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	u := &models.UserRecord{
		ID:              id,
		Channel:         channel,
		DisplayName:     displayName,
		Tokens:          initialTokens,
		Streak:          initialStreak,
		LastTokenReward: now,
		LastActivity:    now,
		StreakDate:      now,
		CreatedAt:       now,
	}
	if s.defaults[channel].ReferralCode {
		u.ReferralCode = ReferralCode(displayName, id)
	}

	if err := s.users.Put(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.record(ctx, u, models.TxInitialGrant, initialTokens, nil)
	s.publish(ctx, events.EventUserCreated, map[string]any{
		"user_key": u.Key(),
		"channel":  string(channel),
		"tokens":   u.Tokens,
	})
	s.log.Info("user created",
		zap.String("user", u.Key()),
		zap.Int("tokens", u.Tokens),
	)
	return u, nil
}

// ReferralCode is the first character of the display name followed by the id.
func ReferralCode(displayName, id string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return id
	}
	r, _ := utf8.DecodeRuneInString(name)
	return strings.ToUpper(string(r)) + id
}

// TouchActivity marks the user as active at now.
func (s *LedgerService) TouchActivity(user *models.UserRecord, now time.Time) {
	user.LastActivity = now
}

// Observe resolves or creates the sender's record and applies the per-message
// rules. The streak is judged on the previous activity before it is touched.
// The caller must hold Lock(ev.UserKey()).
func (s *LedgerService) Observe(ctx context.Context, ev models.InboundEvent, now time.Time) (*Observation, error) {
	obs := &Observation{}

	user, err := s.users.Get(ctx, ev.UserKey())
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		d := s.defaults[ev.Channel]
		user, err = s.createUser(ctx, ev.Channel, ev.SenderID, ev.DisplayName, d.InitialTokens, d.InitialStreak, now)
		if err != nil {
			return nil, err
		}
		obs.IsNew = true
	case err != nil:
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	obs.User = user

	if ev.UpdateProfile && s.defaults[ev.Channel].UpdateProfile &&
		ev.DisplayName != "" && ev.DisplayName != user.DisplayName {
		user.DisplayName = ev.DisplayName
	}

	obs.Streak = rewards.EvaluateStreak(user, now, s.loc)
	s.TouchActivity(user, now)
	obs.IdleReward = rewards.EvaluateIdleReward(user, now)

	if err := s.users.Put(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	if obs.IdleReward > 0 {
		s.record(ctx, user, models.TxIdleReward, obs.IdleReward, nil)
	}
	if obs.Streak.Reward > 0 {
		s.record(ctx, user, models.TxStreakReward, obs.Streak.Reward, map[string]any{"streak": user.Streak})
		s.publish(ctx, events.EventStreakMilestone, map[string]any{
			"user_key": user.Key(),
			"streak":   user.Streak,
			"reward":   obs.Streak.Reward,
		})
	}
	return obs, nil
}

// Spend deducts n tokens. Negative balances are clamped to zero first.
func (s *LedgerService) Spend(ctx context.Context, user *models.UserRecord, n int) error {
	if user.Tokens < 0 {
		user.Tokens = 0
	}
	if user.Tokens <= 0 || user.Tokens < n {
		return ErrInsufficientTokens
	}

	user.Tokens -= n
	if err := s.users.Put(ctx, user); err != nil {
		user.Tokens += n
		return fmt.Errorf("failed to save spend: %w", err)
	}
	s.record(ctx, user, models.TxSpend, -n, nil)
	return nil
}

// Refund returns n tokens after a failed collaborator call.
func (s *LedgerService) Refund(ctx context.Context, user *models.UserRecord, n int) error {
	return s.Credit(ctx, user, n, models.TxRefund, nil)
}

// Credit adds n tokens and writes an audit entry with the given reason.
func (s *LedgerService) Credit(ctx context.Context, user *models.UserRecord, n int, reason string, meta map[string]any) error {
	if n <= 0 {
		return nil
	}
	user.Tokens += n
	if err := s.users.Put(ctx, user); err != nil {
		user.Tokens -= n
		return fmt.Errorf("failed to save credit: %w", err)
	}
	s.record(ctx, user, reason, n, meta)
	return nil
}

// Transactions returns the newest audit entries of one user.
func (s *LedgerService) Transactions(ctx context.Context, channel models.Channel, id string, limit int) ([]models.TokenTransaction, error) {
	return s.txLog.ListByUser(ctx, models.UserKey(channel, id), limit)
}

// record writes the audit entry. Failures are logged, the balance change stands.
func (s *LedgerService) record(ctx context.Context, user *models.UserRecord, reason string, amount int, meta map[string]any) {
	if s.txLog == nil {
		return
	}
	tx := models.TokenTransaction{
		ID:        uuid.New(),
		UserKey:   user.Key(),
		Reason:    reason,
		Amount:    amount,
		Balance:   user.Tokens,
		Meta:      meta,
		CreatedAt: s.now(),
	}
	if err := s.txLog.Log(ctx, tx); err != nil {
		s.log.Error("failed to write token transaction",
			zap.String("user", tx.UserKey),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (s *LedgerService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.StreamLedger, events.New(eventType, payload))
}
