package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// NotificationDispatcher durably stores a notification and then pushes it to
// the user's live connection. When offline, only the store write happens; the
// record is picked up on the user's next fetch, so nothing is lost.
type NotificationDispatcher struct {
	registry *Registry
	store    core.NotificationStore
}

func NewNotificationDispatcher(registry *Registry, store core.NotificationStore) *NotificationDispatcher {
	return &NotificationDispatcher{registry: registry, store: store}
}

// Publish persists the notification, then attempts real-time delivery.
// A failed store write aborts the push.
func (d *NotificationDispatcher) Publish(ctx context.Context, n domain.Notification) (bool, error) {
	if _, err := d.store.AppendNotification(ctx, &n); err != nil {
		return false, fmt.Errorf("%w: notification append: %v", core.ErrTransientStore, err)
	}
	return d.Dispatch(n), nil
}

// Dispatch delivers immediately when the user is online; otherwise no-op.
// Returns whether a real-time push happened.
func (d *NotificationDispatcher) Dispatch(n domain.Notification) bool {
	sess, ok := d.registry.Get(n.UserID)
	if !ok {
		log.Debug().Str("module", "hub.notify").Str("user", string(n.UserID)).
			Str("kind", n.Kind).Msg("recipient offline, push skipped")
		return false
	}
	sendEvent(sess, EvNotification, notificationEvent{
		Notification: n,
		RelativeTime: domain.RelativeTime(n.CreatedAt, time.Now()),
	})
	return true
}
