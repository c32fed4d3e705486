package budget

import (
	"errors"
	"testing"
)

func TestNewTrackerDefaults(t *testing.T) {
	if got := NewTracker(0).MaxTokens; got != DefaultMaxTokens {
		t.Fatalf("expected default %d, got %d", DefaultMaxTokens, got)
	}
	if got := NewTracker(-1).MaxTokens; got != DefaultMaxTokens {
		t.Fatalf("expected default for negative max, got %d", got)
	}
	if got := NewTracker(100).MaxTokens; got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
}

func TestWouldExceed(t *testing.T) {
	tr := NewTracker(100)
	cases := []struct {
		current, additional int
		exceeds             bool
		projected           int
	}{
		{0, 50, false, 50},
		{50, 50, false, 100},
		{50, 60, true, 110},
		{100, 0, false, 100},
		{0, 101, true, 101},
	}
	for _, tc := range cases {
		exceeds, projected := tr.WouldExceed(tc.current, tc.additional)
		if exceeds != tc.exceeds || projected != tc.projected {
			t.Fatalf("WouldExceed(%d, %d) = (%v, %d), want (%v, %d)",
				tc.current, tc.additional, exceeds, projected, tc.exceeds, tc.projected)
		}
	}
}

func TestCheckCarriesPayload(t *testing.T) {
	err := NewTracker(100).Check(50, 60)
	var limit *ErrTokenLimitExceeded
	if !errors.As(err, &limit) {
		t.Fatalf("expected ErrTokenLimitExceeded, got %v", err)
	}
	if limit.Current != 50 || limit.Additional != 60 || limit.Projected != 110 || limit.Max != 100 {
		t.Fatalf("unexpected payload %#v", limit)
	}
	want := "Token limit exceeded. Current: 50, Additional: 60, Total would be: 110, Max: 100"
	if limit.Error() != want {
		t.Fatalf("unexpected message %q", limit.Error())
	}
}

func TestRunningAdmit(t *testing.T) {
	run := NewTracker(100).Start(20)
	if err := run.Admit(30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Total() != 50 || run.Remaining() != 50 {
		t.Fatalf("unexpected totals %d/%d", run.Total(), run.Remaining())
	}
	err := run.Admit(51)
	var limit *ErrTokenLimitExceeded
	if !errors.As(err, &limit) {
		t.Fatalf("expected budget breach, got %v", err)
	}
	if limit.Current != 50 || limit.Projected != 101 {
		t.Fatalf("unexpected payload %#v", limit)
	}
	if run.Total() != 50 {
		t.Fatalf("rejected admit must not change total, got %d", run.Total())
	}
	if err := run.Admit(50); err != nil {
		t.Fatalf("admit up to the ceiling should pass: %v", err)
	}
	if run.Remaining() != 0 {
		t.Fatalf("expected nothing remaining, got %d", run.Remaining())
	}
}
