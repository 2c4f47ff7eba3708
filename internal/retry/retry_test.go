package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordingPolicy(attempts int, slept *[]time.Duration) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Second,
		Multiplier:   2,
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := recordingPolicy(5, &slept).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(slept) != len(want) || slept[0] != want[0] || slept[1] != want[1] {
		t.Errorf("slept = %v, want %v", slept, want)
	}
}

func TestDo_ReturnsLastErrorOnExhaustion(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := recordingPolicy(3, &slept).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("attempt " + string(rune('0'+calls)))
	})
	if err == nil || err.Error() != "attempt 3" {
		t.Fatalf("expected last error, got %v", err)
	}
	if len(slept) != 2 {
		t.Errorf("slept %d times, want 2", len(slept))
	}
}

func TestDo_StopsOnCancelledSleep(t *testing.T) {
	boom := errors.New("boom")
	p := Policy{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return context.Canceled
		},
	}
	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, boom) || !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBackoff(t *testing.T) {
	p := Policy{InitialDelay: 500 * time.Millisecond, Multiplier: 2}
	tests := map[int]time.Duration{
		0: 500 * time.Millisecond,
		1: 500 * time.Millisecond,
		2: time.Second,
		4: 4 * time.Second,
	}
	for attempt, want := range tests {
		if got := p.Backoff(attempt); got != want {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestTimerSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := timerSleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
