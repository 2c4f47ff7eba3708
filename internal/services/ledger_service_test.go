package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/florence-gateway/backend/internal/events"
	"github.com/florence-gateway/backend/internal/models"
	"github.com/florence-gateway/backend/internal/repositories"
)

func TestLedger_IsNewUserAndDefaults(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	isNew, err := h.ledger.IsNewUser(ctx, models.ChannelWhatsApp, "2348000000000")
	if err != nil || !isNew {
		t.Fatalf("expected new user, got isNew=%v err=%v", isNew, err)
	}

	obs, err := h.ledger.Observe(ctx, models.InboundEvent{
		Kind: models.EventText, Channel: models.ChannelWhatsApp, SenderID: "2348000000000", DisplayName: "ada",
	}, baseTime)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !obs.IsNew || obs.User.Tokens != 100 || obs.User.ReferralCode != "A2348000000000" {
		t.Errorf("unexpected whatsapp user: %+v", obs.User)
	}

	obs, _ = h.ledger.Observe(ctx, models.InboundEvent{
		Kind: models.EventText, Channel: models.ChannelTelegram, SenderID: "42", DisplayName: "Bob",
	}, baseTime)
	if obs.User.Tokens != 10 || obs.User.ReferralCode != "" {
		t.Errorf("unexpected telegram user: %+v", obs.User)
	}

	isNew, _ = h.ledger.IsNewUser(ctx, models.ChannelTelegram, "42")
	if isNew {
		t.Error("user should exist after first event")
	}
	if !h.hasEvent(events.EventUserCreated) {
		t.Error("expected user_created event")
	}
}

func TestLedger_ChannelsDoNotShareBalances(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, _ = h.ledger.Observe(ctx, models.InboundEvent{Channel: models.ChannelTelegram, SenderID: "7"}, baseTime)
	_, _ = h.ledger.Observe(ctx, models.InboundEvent{Channel: models.ChannelWhatsApp, SenderID: "7"}, baseTime)

	if h.users.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", h.users.Len())
	}
}

func TestLedger_CreateUserTimestamps(t *testing.T) {
	h := newHarness()
	h.ledger.now = func() time.Time { return baseTime }

	u, err := h.ledger.CreateUser(context.Background(), models.ChannelTelegram, "1", "Ann", 10, 0)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !u.LastTokenReward.Equal(baseTime) || !u.LastActivity.Equal(baseTime) || !u.StreakDate.Equal(baseTime) {
		t.Errorf("timestamps not set to now: %+v", u)
	}

	if _, err := h.ledger.CreateUser(context.Background(), "sms", "1", "Ann", 10, 0); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestLedger_ProfileUpdate(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.seed(models.UserRecord{ID: "1", Channel: models.ChannelTelegram, DisplayName: "Old", Tokens: 10,
		LastTokenReward: baseTime, LastActivity: baseTime, StreakDate: baseTime})
	h.seed(models.UserRecord{ID: "1", Channel: models.ChannelWhatsApp, DisplayName: "Old", Tokens: 10,
		LastTokenReward: baseTime, LastActivity: baseTime, StreakDate: baseTime})

	tg, _ := h.ledger.Observe(ctx, models.InboundEvent{Channel: models.ChannelTelegram, SenderID: "1", DisplayName: "New", UpdateProfile: true}, baseTime)
	wa, _ := h.ledger.Observe(ctx, models.InboundEvent{Channel: models.ChannelWhatsApp, SenderID: "1", DisplayName: "New", UpdateProfile: true}, baseTime)

	if tg.User.DisplayName != "New" {
		t.Errorf("telegram name = %q, want New", tg.User.DisplayName)
	}
	if wa.User.DisplayName != "Old" {
		t.Errorf("whatsapp name = %q, want Old", wa.User.DisplayName)
	}
}

func TestLedger_ObserveAppliesRewards(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	// последняя активность вчера, баланс низкий, 17 часов без бонуса
	h.seed(models.UserRecord{
		ID: "5", Channel: models.ChannelTelegram, Tokens: 2, Streak: 9,
		LastTokenReward: baseTime.Add(-17 * time.Hour),
		LastActivity:    baseTime.Add(-20 * time.Hour),
		StreakDate:      baseTime.Add(-20 * time.Hour),
	})

	obs, err := h.ledger.Observe(ctx, models.InboundEvent{Channel: models.ChannelTelegram, SenderID: "5"}, baseTime)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if obs.Streak.Reward != 10 || obs.User.Streak != 10 {
		t.Errorf("expected streak milestone, got %+v streak=%d", obs.Streak, obs.User.Streak)
	}
	// streak bonus lifts the balance above the idle threshold first
	if obs.IdleReward != 0 {
		t.Errorf("idle reward = %d, want 0", obs.IdleReward)
	}
	if got := h.user(models.ChannelTelegram, "5"); got.Tokens != 12 || !got.LastActivity.Equal(baseTime) {
		t.Errorf("persisted record = %+v", got)
	}
	if !h.hasEvent(events.EventStreakMilestone) {
		t.Error("expected streak_milestone event")
	}
}

func TestLedger_ObserveIdleReward(t *testing.T) {
	h := newHarness()
	h.seed(models.UserRecord{
		ID: "6", Channel: models.ChannelTelegram, Tokens: 2,
		LastTokenReward: baseTime.Add(-9 * time.Hour),
		LastActivity:    baseTime.Add(-time.Hour),
		StreakDate:      baseTime.Add(-time.Hour),
	})

	obs, _ := h.ledger.Observe(context.Background(), models.InboundEvent{Channel: models.ChannelTelegram, SenderID: "6"}, baseTime)
	if obs.IdleReward != 10 || obs.User.Tokens != 12 {
		t.Errorf("idle reward = %d tokens = %d", obs.IdleReward, obs.User.Tokens)
	}

	txs, _ := h.txs.ListByUser(context.Background(), "telegram:6", 0)
	if len(txs) != 1 || txs[0].Reason != models.TxIdleReward || txs[0].Balance != 12 {
		t.Errorf("unexpected transactions: %+v", txs)
	}
}

func TestLedger_StreakBreak(t *testing.T) {
	h := newHarness()
	h.seed(models.UserRecord{
		ID: "8", Channel: models.ChannelTelegram, Tokens: 50, Streak: 7,
		LastTokenReward: baseTime.Add(-50 * time.Hour),
		LastActivity:    baseTime.Add(-50 * time.Hour),
		StreakDate:      baseTime.Add(-50 * time.Hour),
	})

	obs, _ := h.ledger.Observe(context.Background(), models.InboundEvent{Channel: models.ChannelTelegram, SenderID: "8"}, baseTime)
	if !obs.Streak.Broken || obs.User.Streak != 0 {
		t.Errorf("expected broken streak, got %+v streak=%d", obs.Streak, obs.User.Streak)
	}
}

func TestLedger_Spend(t *testing.T) {
	tests := []struct {
		name      string
		tokens    int
		cost      int
		wantErr   bool
		wantAfter int
	}{
		{"enough", 5, 2, false, 3},
		{"exact", 2, 2, false, 0},
		{"short", 1, 2, true, 1},
		{"zero", 0, 1, true, 0},
		{"negative clamped", -3, 1, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			u := &models.UserRecord{ID: "1", Channel: models.ChannelTelegram, Tokens: tt.tokens}
			h.seed(*u)

			err := h.ledger.Spend(context.Background(), u, tt.cost)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInsufficientTokens) {
				t.Errorf("expected ErrInsufficientTokens, got %v", err)
			}
			if u.Tokens != tt.wantAfter {
				t.Errorf("tokens = %d, want %d", u.Tokens, tt.wantAfter)
			}
		})
	}
}

func TestLedger_RefundAndCredit(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	u := &models.UserRecord{ID: "1", Channel: models.ChannelTelegram, Tokens: 3}
	h.seed(*u)

	if err := h.ledger.Spend(ctx, u, 2); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if err := h.ledger.Refund(ctx, u, 2); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if err := h.ledger.Credit(ctx, u, 100, models.TxPaymentVerified, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := h.user(models.ChannelTelegram, "1"); got.Tokens != 103 {
		t.Errorf("tokens = %d, want 103", got.Tokens)
	}

	txs, _ := h.ledger.Transactions(ctx, models.ChannelTelegram, "1", 10)
	want := []string{models.TxPaymentVerified, models.TxRefund, models.TxSpend}
	if len(txs) != len(want) {
		t.Fatalf("got %d transactions, want %d", len(txs), len(want))
	}
	for i, r := range want {
		if txs[i].Reason != r {
			t.Errorf("tx[%d] = %s, want %s", i, txs[i].Reason, r)
		}
	}
}

type failingUserStore struct {
	repositories.UserStore
}

func (failingUserStore) Put(context.Context, *models.UserRecord) error {
	return errors.New("disk full")
}

func TestLedger_SpendRollsBackOnStoreFailure(t *testing.T) {
	h := newHarness()
	h.ledger.users = failingUserStore{UserStore: h.users}
	u := &models.UserRecord{ID: "1", Channel: models.ChannelTelegram, Tokens: 5}

	if err := h.ledger.Spend(context.Background(), u, 2); err == nil {
		t.Fatal("expected error")
	}
	if u.Tokens != 5 {
		t.Errorf("tokens = %d, want 5", u.Tokens)
	}
}

func TestReferralCode(t *testing.T) {
	tests := map[string]string{
		"ada":    "A123",
		" Émile": "É123",
		"":       "123",
	}
	for name, want := range tests {
		if got := ReferralCode(name, "123"); got != want {
			t.Errorf("ReferralCode(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestUserLocks_SerializesAndCleansUp(t *testing.T) {
	locks := newUserLocks()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("telegram:1")
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if locks.size() != 0 {
		t.Errorf("lock table not cleaned up: %d entries", locks.size())
	}
}
