package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/avencel/studyhub/internal/auth"
	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// fakeConn records every event pushed at a connection.
type fakeConn struct {
	mu     sync.Mutex
	events []recordedEvent
	closed bool
}

type recordedEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *fakeConn) TrySend(f core.Frame) error {
	var ev recordedEvent
	if err := json.Unmarshal(f, &ev); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) ofType(typ string) []recordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []recordedEvent
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) count(typ string) int {
	return len(c.ofType(typ))
}

// fakeStore is an in-memory persistent-store collaborator.
type fakeStore struct {
	mu        sync.Mutex
	users     map[domain.UserID]*domain.User
	friends   map[domain.ChannelID]bool
	members   map[string]bool
	counts    map[domain.RoomID]int
	touched   map[domain.RoomID]time.Time
	appended  []*domain.Message
	appendErr error
	marked    int
	notifs    []domain.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[domain.UserID]*domain.User),
		friends: make(map[domain.ChannelID]bool),
		members: make(map[string]bool),
		counts:  make(map[domain.RoomID]int),
		touched: make(map[domain.RoomID]time.Time),
	}
}

func (s *fakeStore) addUser(id domain.UserID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &domain.User{ID: id, Username: name}
}

func (s *fakeStore) addFriends(a, b domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends[domain.DirectChannel(a, b)] = true
}

func (s *fakeStore) addMember(id domain.UserID, roomID domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[string(roomID)+"|"+string(id)] = true
}

func (s *fakeStore) Lookup(ctx context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("no such user %s", id)
}

func (s *fakeStore) ListAccepted(ctx context.Context, id domain.UserID) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.UserID
	for other := range s.users {
		if other != id && s.friends[domain.DirectChannel(id, other)] {
			out = append(out, other)
		}
	}
	return out, nil
}

func (s *fakeStore) AreFriends(ctx context.Context, a, b domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.friends[domain.DirectChannel(a, b)], nil
}

func (s *fakeStore) IsMember(ctx context.Context, id domain.UserID, roomID domain.RoomID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[string(roomID)+"|"+string(id)], nil
}

func (s *fakeStore) SetActiveCount(ctx context.Context, roomID domain.RoomID, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[roomID] = n
	return nil
}

func (s *fakeStore) TouchRoom(ctx context.Context, roomID domain.RoomID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[roomID] = at
	return nil
}

func (s *fakeStore) lastActive(roomID domain.RoomID) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched[roomID]
}

func (s *fakeStore) activeCount(roomID domain.RoomID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[roomID]
}

func (s *fakeStore) Append(ctx context.Context, msg *domain.Message) (domain.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return "", s.appendErr
	}
	s.appended = append(s.appended, msg)
	return msg.ID, nil
}

func (s *fakeStore) MarkRead(ctx context.Context, readerID, counterpartyID domain.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marked, nil
}

func (s *fakeStore) AppendNotification(ctx context.Context, n *domain.Notification) (domain.NotificationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifs = append(s.notifs, *n)
	return n.ID, nil
}

func (s *fakeStore) ListPending(ctx context.Context, id domain.UserID) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notifs {
		if n.UserID == id {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) appendedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appended)
}

func (s *fakeStore) failAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
}

const testTokenTTL = time.Hour

func newTestHub(store *fakeStore) *Hub {
	return New(Deps{
		Verifier:      auth.NewVerifier("test-secret"),
		Users:         store,
		Friends:       store,
		Members:       store,
		Messages:      store,
		Notifications: store,
	})
}

// connect registers a live fake connection for the user.
func connect(t *testing.T, h *Hub, store *fakeStore, id domain.UserID, name string) (*fakeConn, core.ClientSession) {
	t.Helper()
	store.addUser(id, name)
	conn := &fakeConn{}
	sess := core.NewClientSession(&domain.User{ID: id, Username: name}, domain.ConnectionID(uuid.NewString()), conn)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.Registry.Connect(ctx, sess, cancel)
	require.True(t, h.Registry.IsOnline(id))
	return conn, sess
}
