package listing

import (
	"testing"
	"time"
)

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresAt time.Time
		want      int
	}{
		{"full month ahead", now.Add(30 * 24 * time.Hour), 30},
		{"partial day rounds up", now.Add(24*time.Hour + time.Minute), 2},
		{"under a day", now.Add(time.Hour), 1},
		{"expiring this instant", now, 0},
		{"already expired", now.Add(-time.Hour), 0},
		{"long expired", now.Add(-40 * 24 * time.Hour), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := Listing{ExpiresAt: tc.expiresAt}
			if got := l.DaysRemaining(now); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}
