package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avencel/studyhub/internal/domain"
)

const room1 = domain.RoomID("room-1")

func TestJoinReturnsRosterAndBroadcasts(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)

	aliceConn, _ := connect(t, h, store, "alice", "Alice")
	connect(t, h, store, "bob", "Bob")

	roster := h.Presence.Join("alice", room1)
	require.Len(t, roster, 1)

	roster = h.Presence.Join("bob", room1)
	require.Len(t, roster, 2)
	require.Equal(t, domain.UserID("alice"), roster[0].UserID)
	require.Equal(t, domain.UserID("bob"), roster[1].UserID)

	require.Equal(t, 1, aliceConn.count(EvUserJoined))
}

func TestLeaveBroadcastsAndShrinksRoster(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)

	aliceConn, _ := connect(t, h, store, "alice", "Alice")
	connect(t, h, store, "bob", "Bob")

	h.Presence.Join("alice", room1)
	h.Presence.Join("bob", room1)

	require.True(t, h.Presence.Leave("bob", room1))
	require.False(t, h.Presence.Leave("bob", room1))

	require.Len(t, h.Presence.Roster(room1), 1)
	require.Equal(t, 1, aliceConn.count(EvUserLeft))
}

func TestRosterExcludesExpiredBeforeSweep(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)
	connect(t, h, store, "alice", "Alice")
	connect(t, h, store, "bob", "Bob")

	h.Presence.Join("alice", room1)
	h.Presence.Join("bob", room1)
	ageEntry(h.Presence, room1, "alice", 6*time.Minute)

	roster := h.Presence.Roster(room1)
	require.Len(t, roster, 1)
	require.Equal(t, domain.UserID("bob"), roster[0].UserID)
}

func TestHeartbeatRefreshesEntry(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)
	connect(t, h, store, "alice", "Alice")

	h.Presence.Join("alice", room1)
	ageEntry(h.Presence, room1, "alice", 6*time.Minute)
	require.Empty(t, h.Presence.Roster(room1))

	require.True(t, h.Presence.Heartbeat("alice", room1, domain.StatusBusy))
	roster := h.Presence.Roster(room1)
	require.Len(t, roster, 1)
	require.Equal(t, domain.StatusBusy, roster[0].Status)

	require.False(t, h.Presence.Heartbeat("alice", "no-such-room", ""))
}

func TestEmptiedRosterIsDropped(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)
	connect(t, h, store, "alice", "Alice")

	h.Presence.Join("alice", room1)
	require.Len(t, h.Presence.RoomIDs(), 1)

	require.True(t, h.Presence.Leave("alice", room1))
	require.Empty(t, h.Presence.RoomIDs())

	// A fresh join recreates the roster.
	require.Len(t, h.Presence.Join("alice", room1), 1)
	require.Len(t, h.Presence.RoomIDs(), 1)
}

func TestPruneRemovesEmptiedRoster(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)
	connect(t, h, store, "alice", "Alice")

	h.Presence.Join("alice", room1)
	ageEntry(h.Presence, room1, "alice", 6*time.Minute)

	changed, n := h.Presence.Prune(room1, time.Now())
	require.True(t, changed)
	require.Zero(t, n)
	require.Empty(t, h.Presence.RoomIDs())
}

func TestJoinPersistsActiveCount(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)
	connect(t, h, store, "alice", "Alice")

	h.Presence.Join("alice", room1)
	require.Eventually(t, func() bool {
		return store.activeCount(room1) == 1
	}, time.Second, 10*time.Millisecond)
}

// ageEntry backdates a presence entry to simulate staleness.
func ageEntry(tr *PresenceTracker, roomID domain.RoomID, uid domain.UserID, age time.Duration) {
	rr := tr.roster(roomID, false)
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.entries[uid].LastActiveAt = time.Now().Add(-age)
}
