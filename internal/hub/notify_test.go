package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avencel/studyhub/internal/domain"
)

func TestDispatchDeliversToOnlineUser(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)
	aliceConn, _ := connect(t, h, store, "alice", "Alice")

	ok := h.Notifier.Dispatch(domain.Notification{
		ID:        "n1",
		UserID:    "alice",
		Kind:      "friend-request",
		Content:   "Bob sent you a friend request",
		CreatedAt: time.Now(),
	})
	require.True(t, ok)

	evs := aliceConn.ofType(EvNotification)
	require.Len(t, evs, 1)
	var ne notificationEvent
	require.NoError(t, json.Unmarshal(evs[0].Data, &ne))
	require.Equal(t, "Just now", ne.RelativeTime)
	require.Equal(t, domain.NotificationID("n1"), ne.ID)
}

func TestDispatchSkipsOfflineUser(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)

	ok := h.Notifier.Dispatch(domain.Notification{
		ID:     "n1",
		UserID: "alice",
	})
	require.False(t, ok)
}

func TestPublishPersistsEvenWhenOffline(t *testing.T) {
	store := newFakeStore()
	h := newTestHub(store)

	pushed, err := h.Notifier.Publish(context.Background(), domain.Notification{
		ID:        "n1",
		UserID:    "alice",
		Kind:      "friend-request",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.False(t, pushed)

	pending, err := store.ListPending(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
