package domain

import "time"

type PresenceStatus string

const (
	StatusActive PresenceStatus = "active"
	StatusAway   PresenceStatus = "away"
	StatusBusy   PresenceStatus = "busy"
)

// PresenceTTL bounds how long an entry counts as live without a refresh.
const PresenceTTL = 5 * time.Minute

// PresenceEntry records a user being active in a room. Ephemeral, keyed by
// (UserID, RoomID), distinct from persisted room membership.
type PresenceEntry struct {
	UserID       UserID         `json:"userId"`
	RoomID       RoomID         `json:"roomId"`
	Status       PresenceStatus `json:"status"`
	LastActiveAt time.Time      `json:"lastActiveAt"`
}

// Live reports whether the entry is still within the TTL at the given time.
func (e PresenceEntry) Live(now time.Time) bool {
	return now.Sub(e.LastActiveAt) <= PresenceTTL
}
