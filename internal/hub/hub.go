// Package hub holds the live, ephemeral, cross-connection state of the
// platform: who is connected, who is active where, chat fan-out and call
// signaling. Durable records belong to the stores in internal/storage.
package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/auth"
	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// Hub wires the components and owns the connect/disconnect lifecycle.
type Hub struct {
	Registry *Registry
	Presence *PresenceTracker
	Router   *MessageRouter
	Calls    *CallCoordinator
	Relay    *SignalingRelay
	Notifier *NotificationDispatcher
	Subs     *SubscriptionTable

	verifier        *auth.Verifier
	users           core.UserProfileStore
	heartbeatPeriod time.Duration
}

type Deps struct {
	Verifier      *auth.Verifier
	Users         core.UserProfileStore
	Friends       core.FriendshipStore
	Members       core.RoomMembershipStore
	Messages      core.MessageStore
	Notifications core.NotificationStore
	HeartbeatEach time.Duration
}

func New(d Deps) *Hub {
	registry := NewRegistry(d.Friends)
	presence := NewPresenceTracker(registry, d.Members)
	subs := NewSubscriptionTable()
	router := NewMessageRouter(registry, presence, subs, d.Friends, d.Members, d.Messages)
	calls := NewCallCoordinator(registry, d.Members, router)

	period := d.HeartbeatEach
	if period <= 0 {
		period = 30 * time.Second
	}

	return &Hub{
		Registry:        registry,
		Presence:        presence,
		Router:          router,
		Calls:           calls,
		Relay:           NewSignalingRelay(calls, registry),
		Notifier:        NewNotificationDispatcher(registry, d.Notifications),
		Subs:            subs,
		verifier:        d.Verifier,
		users:           d.Users,
		heartbeatPeriod: period,
	}
}

// Authenticate verifies the bearer credential and resolves its subject in
// the profile store. No connection state exists before this succeeds.
func (h *Hub) Authenticate(ctx context.Context, credential string) (*domain.User, error) {
	uid, err := h.verifier.Verify(credential)
	if err != nil {
		return nil, err
	}
	user, err := h.users.Lookup(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown identity %s", core.ErrAuth, uid)
	}
	return user, nil
}

// OnConnect registers the session and starts its heartbeat task. The task
// dies with the connection's context.
func (h *Hub) OnConnect(ctx context.Context, sess core.ClientSession, cancel context.CancelFunc) {
	h.Registry.Connect(ctx, sess, cancel)
	go h.heartbeatLoop(ctx, sess.User().ID)
}

// heartbeatLoop refreshes the identity's presence and resends the
// online-friends snapshot. A resync, not a correctness requirement.
func (h *Hub) heartbeatLoop(ctx context.Context, uid domain.UserID) {
	ticker := time.NewTicker(h.heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, roomID := range h.Presence.RoomsOf(uid) {
				h.Presence.Heartbeat(uid, roomID, "")
			}
			h.Registry.ResendOnlineFriends(ctx, uid)
		}
	}
}

// OnDisconnect runs the cleanup fan-out. Every step tolerates failure of
// the others: log and continue, never abort the rest. Presence and call
// state is keyed by user, so only the connection that owns the current
// registration may clean it; an evicted connection's teardown drops its
// own subscriptions and nothing else.
func (h *Hub) OnDisconnect(uid domain.UserID, connID domain.ConnectionID) {
	ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCtx()

	owned := h.Registry.Disconnect(ctx, uid, connID)
	h.Subs.DropConn(connID)
	if !owned {
		log.Info().Str("module", "hub").Str("user", string(uid)).
			Str("conn", string(connID)).Msg("stale connection teardown, user state kept")
		return
	}
	for _, roomID := range h.Presence.RoomsOf(uid) {
		if !h.Presence.Leave(uid, roomID) {
			log.Warn().Str("module", "hub").Str("user", string(uid)).
				Str("room", string(roomID)).Msg("disconnect: presence entry already gone")
		}
	}
	h.Calls.OnDisconnect(ctx, uid)
	log.Info().Str("module", "hub").Str("user", string(uid)).
		Str("conn", string(connID)).Msg("cleanup fan-out complete")
}

// JoinRoom makes the user active in the room's chat: presence entry,
// socket subscription to the broadcast channel, roster back to the joiner.
func (h *Hub) JoinRoom(uid domain.UserID, roomID domain.RoomID) ([]domain.PresenceEntry, error) {
	sess, ok := h.Registry.Get(uid)
	if !ok {
		return nil, fmt.Errorf("%w: no live connection", core.ErrNotFound)
	}
	h.Subs.Subscribe(domain.RoomChannel(roomID), sess)
	return h.Presence.Join(uid, roomID), nil
}

func (h *Hub) LeaveRoom(uid domain.UserID, roomID domain.RoomID) {
	if sess, ok := h.Registry.Get(uid); ok {
		h.Subs.Unsubscribe(domain.RoomChannel(roomID), sess.ConnID())
	}
	h.Presence.Leave(uid, roomID)
}

// JoinDirectChat subscribes the user's connection to the pair's
// conversation channel; LeaveDirectChat undoes it.
func (h *Hub) JoinDirectChat(uid, friendID domain.UserID) error {
	sess, ok := h.Registry.Get(uid)
	if !ok {
		return fmt.Errorf("%w: no live connection", core.ErrNotFound)
	}
	h.Subs.Subscribe(domain.DirectChannel(uid, friendID), sess)
	return nil
}

func (h *Hub) LeaveDirectChat(uid, friendID domain.UserID) {
	if sess, ok := h.Registry.Get(uid); ok {
		h.Subs.Unsubscribe(domain.DirectChannel(uid, friendID), sess.ConnID())
	}
}
