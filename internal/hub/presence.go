package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// roomRoster is the per-room presence state. Each roster carries its own
// lock so unrelated rooms never contend. An emptied roster is marked dead
// and removed from the tracker; joiners that raced the removal retry.
type roomRoster struct {
	mu      sync.Mutex
	entries map[domain.UserID]*domain.PresenceEntry
	order   []domain.UserID
	dead    bool
}

func (rr *roomRoster) snapshotLocked(now time.Time) []domain.PresenceEntry {
	out := make([]domain.PresenceEntry, 0, len(rr.order))
	for _, uid := range rr.order {
		if e, ok := rr.entries[uid]; ok && e.Live(now) {
			out = append(out, *e)
		}
	}
	return out
}

// PresenceTracker tracks which identities are active in which room, with
// TTL expiry applied at read time.
type PresenceTracker struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*roomRoster
	registry *Registry
	members  core.RoomMembershipStore
}

func NewPresenceTracker(registry *Registry, members core.RoomMembershipStore) *PresenceTracker {
	return &PresenceTracker{
		rooms:    make(map[domain.RoomID]*roomRoster),
		registry: registry,
		members:  members,
	}
}

func (t *PresenceTracker) roster(roomID domain.RoomID, create bool) *roomRoster {
	t.mu.RLock()
	rr, ok := t.rooms[roomID]
	t.mu.RUnlock()
	if ok || !create {
		return rr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if rr, ok = t.rooms[roomID]; ok {
		return rr
	}
	rr = &roomRoster{entries: make(map[domain.UserID]*domain.PresenceEntry)}
	t.rooms[roomID] = rr
	return rr
}

// Join upserts the presence entry, returns the live roster and announces
// the arrival to the rest of it. Last write wins on duplicate join.
func (t *PresenceTracker) Join(userID domain.UserID, roomID domain.RoomID) []domain.PresenceEntry {
	now := time.Now()

	var roster []domain.PresenceEntry
	for {
		rr := t.roster(roomID, true)
		rr.mu.Lock()
		if rr.dead {
			rr.mu.Unlock()
			continue
		}
		if _, ok := rr.entries[userID]; !ok {
			rr.order = append(rr.order, userID)
		}
		rr.entries[userID] = &domain.PresenceEntry{
			UserID:       userID,
			RoomID:       roomID,
			Status:       domain.StatusActive,
			LastActiveAt: now,
		}
		roster = rr.snapshotLocked(now)
		rr.mu.Unlock()
		break
	}

	log.Info().Str("module", "hub.presence").Str("user", string(userID)).
		Str("room", string(roomID)).Msg("joined room")

	t.broadcast(roster, userID, EvUserJoined, presenceEvent{RoomID: roomID, UserID: userID})
	t.persistCount(roomID, len(roster))
	return roster
}

// Leave removes the entry and announces the departure. Returns false when
// the user had no entry, which is not an error on cleanup paths.
func (t *PresenceTracker) Leave(userID domain.UserID, roomID domain.RoomID) bool {
	rr := t.roster(roomID, false)
	if rr == nil {
		return false
	}
	now := time.Now()

	rr.mu.Lock()
	if _, ok := rr.entries[userID]; !ok {
		rr.mu.Unlock()
		return false
	}
	delete(rr.entries, userID)
	for i, uid := range rr.order {
		if uid == userID {
			rr.order = append(rr.order[:i], rr.order[i+1:]...)
			break
		}
	}
	empty := len(rr.entries) == 0
	if empty {
		rr.dead = true
	}
	roster := rr.snapshotLocked(now)
	rr.mu.Unlock()

	if empty {
		t.dropRoster(roomID, rr)
	}

	log.Info().Str("module", "hub.presence").Str("user", string(userID)).
		Str("room", string(roomID)).Msg("left room")

	t.broadcast(roster, userID, EvUserLeft, presenceEvent{RoomID: roomID, UserID: userID})
	t.persistCount(roomID, len(roster))
	return true
}

// Heartbeat refreshes lastActiveAt and, when given, the status.
func (t *PresenceTracker) Heartbeat(userID domain.UserID, roomID domain.RoomID, status domain.PresenceStatus) bool {
	rr := t.roster(roomID, false)
	if rr == nil {
		return false
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	e, ok := rr.entries[userID]
	if !ok {
		return false
	}
	e.LastActiveAt = time.Now()
	if status != "" {
		e.Status = status
	}
	return true
}

// Roster returns the entries with lastActiveAt within the TTL, in insertion
// order, independent of whether the sweeper has run.
func (t *PresenceTracker) Roster(roomID domain.RoomID) []domain.PresenceEntry {
	rr := t.roster(roomID, false)
	if rr == nil {
		return nil
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.snapshotLocked(time.Now())
}

// RoomsOf lists every room the user currently has an entry in.
func (t *PresenceTracker) RoomsOf(userID domain.UserID) []domain.RoomID {
	t.mu.RLock()
	ids := make([]domain.RoomID, 0, len(t.rooms))
	rosters := make([]*roomRoster, 0, len(t.rooms))
	for id, rr := range t.rooms {
		ids = append(ids, id)
		rosters = append(rosters, rr)
	}
	t.mu.RUnlock()

	var out []domain.RoomID
	for i, rr := range rosters {
		rr.mu.Lock()
		_, ok := rr.entries[userID]
		rr.mu.Unlock()
		if ok {
			out = append(out, ids[i])
		}
	}
	return out
}

// RoomIDs snapshots the tracked room set for the sweeper.
func (t *PresenceTracker) RoomIDs() []domain.RoomID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.RoomID, 0, len(t.rooms))
	for id := range t.rooms {
		out = append(out, id)
	}
	return out
}

// Prune drops entries older than the TTL from one room. It returns whether
// the roster changed and its live size afterwards. A roster pruned down to
// nothing is removed from the tracker entirely.
func (t *PresenceTracker) Prune(roomID domain.RoomID, now time.Time) (bool, int) {
	rr := t.roster(roomID, false)
	if rr == nil {
		return false, 0
	}
	rr.mu.Lock()
	changed := false
	kept := rr.order[:0]
	for _, uid := range rr.order {
		e := rr.entries[uid]
		if e != nil && e.Live(now) {
			kept = append(kept, uid)
			continue
		}
		delete(rr.entries, uid)
		changed = true
	}
	rr.order = kept
	n := len(rr.order)
	empty := len(rr.entries) == 0
	if empty {
		rr.dead = true
	}
	rr.mu.Unlock()

	if empty {
		t.dropRoster(roomID, rr)
	}
	return changed, n
}

// dropRoster removes an emptied roster from the tracker. The identity check
// tolerates a concurrent join that already replaced it.
func (t *PresenceTracker) dropRoster(roomID domain.RoomID, rr *roomRoster) {
	t.mu.Lock()
	if t.rooms[roomID] == rr {
		delete(t.rooms, roomID)
	}
	t.mu.Unlock()
}

func (t *PresenceTracker) broadcast(roster []domain.PresenceEntry, skip domain.UserID, typ string, data any) {
	f, ok := encodeEvent(typ, data)
	if !ok {
		return
	}
	for _, e := range roster {
		if e.UserID == skip {
			continue
		}
		if sess, ok := t.registry.Get(e.UserID); ok {
			_ = sess.Signal().TrySend(f)
		}
	}
}

// persistCount writes the active-member count best effort; a store failure
// is logged and never blocks the in-memory broadcast.
func (t *PresenceTracker) persistCount(roomID domain.RoomID, n int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.members.SetActiveCount(ctx, roomID, n); err != nil {
			log.Warn().Err(err).Str("module", "hub.presence").
				Str("room", string(roomID)).Int("count", n).Msg("persist active count")
		}
	}()
}
