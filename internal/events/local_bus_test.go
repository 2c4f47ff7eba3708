package events

import (
	"context"
	"testing"
)

func TestLocalBus_FanOut(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	var got []string
	_ = bus.Subscribe(ctx, StreamLedger, func(e Event) { got = append(got, "a:"+e.Type) })
	_ = bus.Subscribe(ctx, StreamLedger, func(e Event) { got = append(got, "b:"+e.Type) })
	_ = bus.Subscribe(ctx, "events:other", func(e Event) { got = append(got, "other") })

	if err := bus.Publish(ctx, StreamLedger, New(EventPaymentVerified, nil)); err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 || got[0] != "a:payment_verified" || got[1] != "b:payment_verified" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestNew_FillsEnvelope(t *testing.T) {
	e := New(EventUserCreated, map[string]any{"user_key": "telegram:1"})
	if e.ID == "" || e.OccurredAt.IsZero() {
		t.Fatalf("envelope not filled: %+v", e)
	}
}

func TestLocalBus_SubscribeFromHandler(t *testing.T) {
	bus := NewLocalBus()
	ctx := context.Background()

	calls := 0
	_ = bus.Subscribe(ctx, StreamLedger, func(Event) {
		calls++
		// подписка из обработчика не должна блокировать и не попадает в текущую рассылку
		_ = bus.Subscribe(ctx, StreamLedger, func(Event) { calls += 10 })
	})

	_ = bus.Publish(ctx, StreamLedger, New(EventUserCreated, nil))
	if calls != 1 {
		t.Fatalf("first publish: calls = %d, want 1", calls)
	}

	_ = bus.Publish(ctx, StreamLedger, New(EventUserCreated, nil))
	if calls != 1+1+10 {
		t.Errorf("second publish: calls = %d, want 12", calls)
	}
}
