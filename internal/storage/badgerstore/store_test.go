package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avencel/studyhub/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alice, err := domain.NewUser("alice", "Alice")
	require.NoError(t, err)
	require.NoError(t, s.SaveUser(ctx, alice))

	user, err := s.Lookup(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "Alice", user.Username)

	_, err = s.Lookup(ctx, "nobody")
	require.Error(t, err)
}

func TestFriendshipBothDirections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddFriendship(ctx, "alice", "bob"))

	ok, err := s.AreFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.AreFriends(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.AreFriends(ctx, "alice", "carol")
	require.NoError(t, err)
	require.False(t, ok)

	friends, err := s.ListAccepted(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{"bob"}, friends)

	friends, err = s.ListAccepted(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{"alice"}, friends)
}

func TestMembershipAndActiveCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddMember(ctx, "alice", "room-1"))

	ok, err := s.IsMember(ctx, "alice", "room-1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.IsMember(ctx, "alice", "room-2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetActiveCount(ctx, "room-1", 7))
	n, err := s.ActiveCount(ctx, "room-1")
	require.NoError(t, err)
	require.Equal(t, 7, n)

	n, err = s.ActiveCount(ctx, "room-2")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAppendKeepsChronologicalOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	for i, content := range []string{"first", "second", "third"} {
		_, err := s.Append(ctx, &domain.Message{
			RoomID:   "room-1",
			SenderID: "alice",
			Content:  content,
			SentAt:   at.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	msgs, err := s.ChannelMessages(ctx, domain.RoomChannel("room-1"))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "third", msgs[2].Content)
}

func TestMarkReadFlipsOnlyCounterpartyMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	put := func(sender, recipient domain.UserID, offset time.Duration) {
		_, err := s.Append(ctx, &domain.Message{
			SenderID:    sender,
			RecipientID: recipient,
			Content:     "hey",
			SentAt:      at.Add(offset),
		})
		require.NoError(t, err)
	}
	put("alice", "bob", 0)
	put("alice", "bob", time.Minute)
	put("bob", "alice", 2*time.Minute)

	n, err := s.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Second pass finds nothing unread.
	n, err = s.MarkRead(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Zero(t, n)

	msgs, err := s.ChannelMessages(ctx, domain.DirectChannel("alice", "bob"))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.True(t, msgs[0].Read)
	require.True(t, msgs[1].Read)
	require.False(t, msgs[2].Read, "bob's own message stays unread for alice")
}

func TestNotificationsListedPerUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := s.AppendNotification(ctx, &domain.Notification{
		UserID:    "alice",
		Kind:      "friend-request",
		Content:   "Bob sent you a friend request",
		CreatedAt: at,
	})
	require.NoError(t, err)
	_, err = s.AppendNotification(ctx, &domain.Notification{
		UserID:    "bob",
		Kind:      "room-invite",
		Content:   "Alice invited you",
		CreatedAt: at,
	})
	require.NoError(t, err)

	ns, err := s.ListPending(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	require.Equal(t, "friend-request", ns[0].Kind)
}
