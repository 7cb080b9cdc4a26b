package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// callSession is one room's live call. Its mutex spans
// compute-snapshot + record-participant + broadcast as one atomic step, so
// concurrent joiners always observe each other consistently.
type callSession struct {
	mu           sync.Mutex
	roomID       domain.RoomID
	participants map[domain.UserID]*domain.CallParticipant
	order        []domain.UserID
	closed       bool
}

func newCallSession(roomID domain.RoomID) *callSession {
	return &callSession{
		roomID:       roomID,
		participants: make(map[domain.UserID]*domain.CallParticipant),
	}
}

func (s *callSession) snapshotLocked(skip domain.UserID) []domain.CallParticipant {
	out := make([]domain.CallParticipant, 0, len(s.order))
	for _, uid := range s.order {
		if uid == skip {
			continue
		}
		if p, ok := s.participants[uid]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// CallCoordinator owns the per-room call sessions. A session exists only
// while it has participants.
type CallCoordinator struct {
	mu       sync.Mutex
	sessions map[domain.RoomID]*callSession
	registry *Registry
	members  core.RoomMembershipStore
	router   *MessageRouter
}

func NewCallCoordinator(registry *Registry, members core.RoomMembershipStore, router *MessageRouter) *CallCoordinator {
	return &CallCoordinator{
		sessions: make(map[domain.RoomID]*callSession),
		registry: registry,
		members:  members,
		router:   router,
	}
}

func (c *CallCoordinator) get(roomID domain.RoomID) *callSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[roomID]
}

func (c *CallCoordinator) getOrCreate(roomID domain.RoomID) *callSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[roomID]
	if !ok {
		s = newCallSession(roomID)
		c.sessions[roomID] = s
	}
	return s
}

// Join adds the user to the room's call and returns the participants that
// were already present, so the joiner can negotiate with each of them.
func (c *CallCoordinator) Join(ctx context.Context, roomID domain.RoomID, userID domain.UserID) ([]domain.CallParticipant, error) {
	ok, err := c.members.IsMember(ctx, userID, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership lookup: %v", core.ErrTransientStore, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: not a member", core.ErrCall)
	}
	sess, online := c.registry.Get(userID)
	if !online {
		return nil, fmt.Errorf("%w: no live connection", core.ErrCall)
	}

	p := &domain.CallParticipant{
		UserID:       userID,
		Username:     sess.User().Username,
		RoomID:       roomID,
		ConnectionID: sess.ConnID(),
		AudioEnabled: true,
		JoinedAt:     time.Now(),
	}

	var peers []domain.CallParticipant
	for {
		s := c.getOrCreate(roomID)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		if existing, rejoin := s.participants[userID]; rejoin {
			// Duplicate join keeps the spot and its media state; only the
			// transport binding is refreshed. No broadcast, peers saw
			// nothing change.
			existing.ConnectionID = sess.ConnID()
			existing.Username = sess.User().Username
			peers = s.snapshotLocked(userID)
			s.mu.Unlock()
			return peers, nil
		}
		peers = s.snapshotLocked(userID)
		s.participants[userID] = p
		s.order = append(s.order, userID)
		c.broadcastLocked(s, userID, EvUserJoinedCall, callParticipantEvent{RoomID: roomID, Participant: p})
		s.mu.Unlock()
		break
	}

	log.Info().Str("module", "hub.call").Str("user", string(userID)).
		Str("room", string(roomID)).Int("peers", len(peers)).Msg("joined call")

	if err := c.router.SendSystemMessage(ctx, roomID, p.Username+" joined the voice call"); err != nil {
		log.Warn().Err(err).Str("module", "hub.call").Str("room", string(roomID)).Msg("join system message")
	}
	return peers, nil
}

// Leave removes the participant and destroys the session when it empties.
// It is idempotent: leaving a call one is not in is a silent no-op, because
// the disconnect-triggered and explicit leave paths can race.
func (c *CallCoordinator) Leave(ctx context.Context, roomID domain.RoomID, userID domain.UserID) {
	s := c.get(roomID)
	if s == nil {
		return
	}

	s.mu.Lock()
	p, ok := s.participants[userID]
	if s.closed || !ok {
		s.mu.Unlock()
		return
	}
	delete(s.participants, userID)
	for i, uid := range s.order {
		if uid == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	empty := len(s.participants) == 0
	if empty {
		s.closed = true
	}
	c.broadcastLocked(s, userID, EvUserLeftCall, callLeftEvent{RoomID: roomID, UserID: userID})
	s.mu.Unlock()

	if empty {
		c.mu.Lock()
		if c.sessions[roomID] == s {
			delete(c.sessions, roomID)
		}
		c.mu.Unlock()
		log.Info().Str("module", "hub.call").Str("room", string(roomID)).Msg("call session destroyed")
	}

	log.Info().Str("module", "hub.call").Str("user", string(userID)).
		Str("room", string(roomID)).Msg("left call")

	if err := c.router.SendSystemMessage(ctx, roomID, p.Username+" left the voice call"); err != nil {
		log.Warn().Err(err).Str("module", "hub.call").Str("room", string(roomID)).Msg("leave system message")
	}
}

// UpdateMedia applies a partial media-state update and broadcasts the delta
// to the rest of the session. Updates for a non-participant are ignored.
func (c *CallCoordinator) UpdateMedia(roomID domain.RoomID, userID domain.UserID, delta domain.MediaDelta) {
	s := c.get(roomID)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[userID]
	if s.closed || !ok {
		return
	}
	if delta.AudioEnabled != nil {
		p.AudioEnabled = *delta.AudioEnabled
	}
	if delta.VideoEnabled != nil {
		p.VideoEnabled = *delta.VideoEnabled
	}
	if delta.ScreenSharing != nil {
		p.ScreenSharing = *delta.ScreenSharing
	}
	c.broadcastLocked(s, userID, EvMediaChanged, mediaChangedEvent{RoomID: roomID, UserID: userID, Delta: delta})
}

// UpdateSpeaking broadcasts the ephemeral speaking flag; never persisted.
func (c *CallCoordinator) UpdateSpeaking(roomID domain.RoomID, userID domain.UserID, speaking bool) {
	s := c.get(roomID)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[userID]
	if s.closed || !ok {
		return
	}
	p.IsSpeaking = speaking
	c.broadcastLocked(s, userID, EvSpeakingStatus, speakingEvent{RoomID: roomID, UserID: userID, IsSpeaking: speaking})
}

// HasParticipant is the relay's lookup: participation in this specific
// call, not mere app-wide connectivity.
func (c *CallCoordinator) HasParticipant(roomID domain.RoomID, userID domain.UserID) bool {
	s := c.get(roomID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[userID]
	return ok && !s.closed
}

// SessionsOf lists every room whose call currently contains the user.
func (c *CallCoordinator) SessionsOf(userID domain.UserID) []domain.RoomID {
	c.mu.Lock()
	ids := make([]domain.RoomID, 0, len(c.sessions))
	all := make([]*callSession, 0, len(c.sessions))
	for id, s := range c.sessions {
		ids = append(ids, id)
		all = append(all, s)
	}
	c.mu.Unlock()

	var out []domain.RoomID
	for i, s := range all {
		s.mu.Lock()
		_, ok := s.participants[userID]
		s.mu.Unlock()
		if ok {
			out = append(out, ids[i])
		}
	}
	return out
}

// OnDisconnect leaves every call session containing the user exactly once.
func (c *CallCoordinator) OnDisconnect(ctx context.Context, userID domain.UserID) {
	for _, roomID := range c.SessionsOf(userID) {
		c.Leave(ctx, roomID, userID)
	}
}

// PruneOrphans drops participants whose identity no longer holds a live
// connection. Normal disconnect cleanup makes this a no-op; it guards
// against a missed fan-out step.
func (c *CallCoordinator) PruneOrphans(ctx context.Context) int {
	pruned := 0
	c.mu.Lock()
	rooms := make([]domain.RoomID, 0, len(c.sessions))
	for id := range c.sessions {
		rooms = append(rooms, id)
	}
	c.mu.Unlock()

	for _, roomID := range rooms {
		s := c.get(roomID)
		if s == nil {
			continue
		}
		s.mu.Lock()
		var orphans []domain.UserID
		for uid := range s.participants {
			if !c.registry.IsOnline(uid) {
				orphans = append(orphans, uid)
			}
		}
		s.mu.Unlock()
		for _, uid := range orphans {
			c.Leave(ctx, roomID, uid)
			pruned++
		}
	}
	return pruned
}

// broadcastLocked fans out to every participant except skip. Callers hold
// s.mu; TrySend never blocks.
func (c *CallCoordinator) broadcastLocked(s *callSession, skip domain.UserID, typ string, data any) {
	f, ok := encodeEvent(typ, data)
	if !ok {
		return
	}
	for uid := range s.participants {
		if uid == skip {
			continue
		}
		if sess, ok := c.registry.Get(uid); ok {
			_ = sess.Signal().TrySend(f)
		}
	}
}
