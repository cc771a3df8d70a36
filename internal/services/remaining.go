package services

import (
	"fmt"
	"time"
)

// Remaining renders how long an echo has left at now.
func Remaining(now, expiresAt time.Time) string {
	d := expiresAt.Sub(now)
	if d <= 0 {
		return "about to disappear"
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	switch {
	case hours == 0:
		return fmt.Sprintf("%d minutes until disappearance", minutes)
	case minutes == 0:
		return fmt.Sprintf("%d hours until disappearance", hours)
	default:
		return fmt.Sprintf("%d hours (%d minutes) until disappearance", hours, minutes)
	}
}
