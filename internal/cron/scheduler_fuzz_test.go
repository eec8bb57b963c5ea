package cron

import (
	"testing"
	"time"
)

func FuzzParseSchedule(f *testing.F) {
	for _, seed := range []string{
		DefaultCompactionSchedule,
		"0 3 * * *",
		"@hourly",
		"@every 90s",
		"off",
		"",
		"60 * * * *",
		"0 0 31 2 *",
	} {
		f.Add(seed)
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.Fuzz(func(t *testing.T, expr string) {
		sched, err := ParseSchedule(expr)
		if err != nil {
			return
		}
		// Impossible dates such as Feb 31 yield the zero time.
		if next := sched.Next(from); !next.IsZero() && !next.After(from) {
			t.Errorf("Next(%v) = %v for %q, want a later time", from, next, expr)
		}
	})
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		wantErr bool
	}{
		{DefaultCompactionSchedule, false},
		{"@daily", false},
		{"  ", true},
		{Off, true},
		{"* * * *", true},
	}
	for _, tt := range tests {
		if _, err := ParseSchedule(tt.expr); (err != nil) != tt.wantErr {
			t.Errorf("ParseSchedule(%q) = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}
