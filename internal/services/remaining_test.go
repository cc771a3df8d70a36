package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		left time.Duration
		want string
	}{
		{-time.Minute, "about to disappear"},
		{0, "about to disappear"},
		{30 * time.Second, "0 minutes until disappearance"},
		{45 * time.Minute, "45 minutes until disappearance"},
		{3 * time.Hour, "3 hours until disappearance"},
		{3*time.Hour + 20*time.Minute + 59*time.Second, "3 hours (20 minutes) until disappearance"},
		{24 * time.Hour, "24 hours until disappearance"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Remaining(now, now.Add(tc.left)), "left=%v", tc.left)
	}
}
