package domain

import (
	"fmt"
	"time"
)

type NotificationID string

// Notification is an already-persisted event the hub may push in real time.
type Notification struct {
	ID        NotificationID `json:"id"`
	UserID    UserID         `json:"userId"`
	Kind      string         `json:"kind"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
}

// RelativeTime renders a human-readable age for the push payload.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
