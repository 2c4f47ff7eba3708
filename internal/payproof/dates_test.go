package payproof

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		valid bool
	}{
		{"05/03/2025", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"5-3-2025", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"2025-03-05", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"29/02/2024", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), true},
		{"29/02/2025", time.Time{}, false},
		{"00/01/2025", time.Time{}, false},
		{"12/13/2025", time.Time{}, false},
		{"2025-13-01", time.Time{}, false},
		{"garbage", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.valid {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.valid)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindDateCandidates(t *testing.T) {
	text := "paid 01/02/2025, settled 2025-02-03 ref 12-12-2024 phone 0801-234"
	got := FindDateCandidates(text)
	want := []string{"01/02/2025", "2025-02-03", "12-12-2024"}
	if len(got) != len(want) {
		t.Fatalf("FindDateCandidates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindDateCandidates_Unseparated(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"NGN1000, Date05/03/2025", "05/03/2025"},
		{"completed 2025-03-05T10:22:11Z", "2025-03-05"},
		{"ref:FLW12-03-2025", "12-03-2025"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := FindDateCandidates(tt.text)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("FindDateCandidates(%q) = %v, want [%s]", tt.text, got, tt.want)
			}
		})
	}
}

func TestLatestDate(t *testing.T) {
	got, ok := LatestDate([]string{"01/02/2025", "31/02/2025", "2025-01-20"})
	if !ok {
		t.Fatal("expected a date")
	}
	if !got.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("LatestDate = %v", got)
	}

	if _, ok := LatestDate([]string{"99/99/2025"}); ok {
		t.Error("expected no valid date")
	}
}
