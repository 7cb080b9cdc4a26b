package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

type connEntry struct {
	Session core.ClientSession
	Cancel  context.CancelFunc
}

// Registry maps an authenticated identity to its live connection and drives
// online/offline friend notifications. At most one connection per identity:
// a second registration evicts the first and closes it.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[domain.UserID]*connEntry
	friends core.FriendshipStore
}

func NewRegistry(friends core.FriendshipStore) *Registry {
	return &Registry{
		byUser:  make(map[domain.UserID]*connEntry),
		friends: friends,
	}
}

// Connect registers the session, greets it with the online-friends snapshot
// and announces friend-online to every already-registered friend.
func (r *Registry) Connect(ctx context.Context, sess core.ClientSession, cancel context.CancelFunc) {
	uid := sess.User().ID

	r.mu.Lock()
	prev := r.byUser[uid]
	r.byUser[uid] = &connEntry{Session: sess, Cancel: cancel}
	r.mu.Unlock()

	if prev != nil {
		log.Info().Str("module", "hub.registry").Str("user", string(uid)).Msg("evicting previous connection")
		if prev.Cancel != nil {
			prev.Cancel()
		}
		prev.Session.Signal().Close()
	}

	log.Info().Str("module", "hub.registry").Str("user", string(uid)).
		Str("conn", string(sess.ConnID())).Msg("connected")

	online := r.onlineFriends(ctx, uid)
	sendEvent(sess, EvOnlineFriends, onlineFriendsEvent{Friends: online})
	for _, fid := range online {
		if fs, ok := r.Get(fid); ok {
			sendEvent(fs, EvFriendOnline, friendEvent{UserID: uid})
		}
	}
}

// Disconnect unregisters the connection and emits friend-offline to each
// registered friend. The connID guard keeps a stale connection's teardown
// from clobbering a newer registration for the same identity. Returns
// whether the caller owned the current registration; callers must skip
// user-keyed cleanup when it reports false.
func (r *Registry) Disconnect(ctx context.Context, uid domain.UserID, connID domain.ConnectionID) bool {
	r.mu.Lock()
	entry, ok := r.byUser[uid]
	if !ok || entry.Session.ConnID() != connID {
		r.mu.Unlock()
		return false
	}
	delete(r.byUser, uid)
	r.mu.Unlock()

	log.Info().Str("module", "hub.registry").Str("user", string(uid)).
		Str("conn", string(connID)).Msg("disconnected")

	for _, fid := range r.onlineFriends(ctx, uid) {
		if fs, ok := r.Get(fid); ok {
			sendEvent(fs, EvFriendOffline, friendEvent{UserID: uid})
		}
	}
	return true
}

// ResendOnlineFriends pushes a fresh snapshot to one user, used by the
// per-connection heartbeat as a self-healing resync.
func (r *Registry) ResendOnlineFriends(ctx context.Context, uid domain.UserID) {
	sess, ok := r.Get(uid)
	if !ok {
		return
	}
	sendEvent(sess, EvOnlineFriends, onlineFriendsEvent{Friends: r.onlineFriends(ctx, uid)})
}

func (r *Registry) onlineFriends(ctx context.Context, uid domain.UserID) []domain.UserID {
	all, err := r.friends.ListAccepted(ctx, uid)
	if err != nil {
		log.Error().Err(err).Str("module", "hub.registry").Str("user", string(uid)).Msg("list friends")
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(all, func(fid domain.UserID, _ int) bool {
		_, ok := r.byUser[fid]
		return ok
	})
}

func (r *Registry) Get(uid domain.UserID) (core.ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byUser[uid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) IsOnline(uid domain.UserID) bool {
	_, ok := r.Get(uid)
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
