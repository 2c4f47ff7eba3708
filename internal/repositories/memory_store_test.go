package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/florence-gateway/backend/internal/models"
)

func TestMemoryUserStore_CopySemantics(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStore()

	u := &models.UserRecord{ID: "42", Channel: models.ChannelTelegram, Tokens: 10}
	if err := s.Put(ctx, u); err != nil {
		t.Fatal(err)
	}
	u.Tokens = 99

	got, err := s.Get(ctx, "telegram:42")
	if err != nil {
		t.Fatalf("expected record, got error: %v", err)
	}
	if got.Tokens != 10 {
		t.Errorf("store shares memory with caller: tokens = %d", got.Tokens)
	}

	if err := s.Delete(ctx, "telegram:42"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "telegram:42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryRequestStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRequestStore()

	if _, err := s.Get(ctx, "whatsapp:+234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_ = s.Put(ctx, &models.PaymentRequest{UserKey: "whatsapp:+234"})
	if _, err := s.Get(ctx, "whatsapp:+234"); err != nil {
		t.Fatalf("expected request, got %v", err)
	}
}

func TestMemoryConversationStore_Trims(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversationStore(3)

	for _, c := range []string{"a", "b", "c", "d"} {
		_ = s.Append(ctx, "k", models.Turn{Role: models.RoleUser, Content: c})
	}

	turns, _ := s.Recent(ctx, "k", 0)
	if len(turns) != 3 || turns[0].Content != "b" || turns[2].Content != "d" {
		t.Fatalf("unexpected history: %+v", turns)
	}

	turns, _ = s.Recent(ctx, "k", 2)
	if len(turns) != 2 || turns[0].Content != "c" {
		t.Fatalf("unexpected limited history: %+v", turns)
	}
}

func TestMemoryTransactionLog_NewestFirst(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryTransactionLog()

	_ = l.Log(ctx, models.TokenTransaction{UserKey: "u", Reason: models.TxInitialGrant, Amount: 10})
	_ = l.Log(ctx, models.TokenTransaction{UserKey: "other", Reason: models.TxInitialGrant, Amount: 10})
	_ = l.Log(ctx, models.TokenTransaction{UserKey: "u", Reason: models.TxSpend, Amount: -1})

	txs, err := l.ListByUser(ctx, "u", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 || txs[0].Reason != models.TxSpend {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
}
