package viewmodel

import (
	"fmt"
	"time"
)

// FormatTimestamp renders t relative to now for the chat list.
func FormatTimestamp(t, now time.Time) string {
	diff := now.Sub(t)
	minutes := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm", minutes)
	case hours < 24:
		return fmt.Sprintf("%dh", hours)
	case days < 7:
		return fmt.Sprintf("%dd", days)
	default:
		return t.Format("Jan 2")
	}
}

// FormatMessageTime renders the clock time of a message, e.g. "3:04 PM".
func FormatMessageTime(t time.Time) string {
	return t.Format("3:04 PM")
}
