package core

import (
	"context"
	"time"

	"github.com/avencel/studyhub/internal/domain"
)

// Persistent Store collaborator interfaces. The hub only reads identity,
// friendship and membership facts and appends messages; the CRUD surfaces
// that populate them live elsewhere.

type UserProfileStore interface {
	Lookup(ctx context.Context, id domain.UserID) (*domain.User, error)
}

type FriendshipStore interface {
	// ListAccepted returns the accepted-friend set of a user.
	ListAccepted(ctx context.Context, id domain.UserID) ([]domain.UserID, error)
	// AreFriends reports whether an accepted edge exists between the pair.
	AreFriends(ctx context.Context, a, b domain.UserID) (bool, error)
}

type RoomMembershipStore interface {
	IsMember(ctx context.Context, id domain.UserID, roomID domain.RoomID) (bool, error)
	SetActiveCount(ctx context.Context, roomID domain.RoomID, n int) error
	// TouchRoom refreshes the room's lastActive timestamp.
	TouchRoom(ctx context.Context, roomID domain.RoomID, at time.Time) error
}

type MessageStore interface {
	Append(ctx context.Context, msg *domain.Message) (domain.MessageID, error)
	// MarkRead flips the read flag on every unread message sent by
	// counterparty to reader, returning how many were updated.
	MarkRead(ctx context.Context, readerID, counterpartyID domain.UserID) (int, error)
}

type NotificationStore interface {
	AppendNotification(ctx context.Context, n *domain.Notification) (domain.NotificationID, error)
	ListPending(ctx context.Context, id domain.UserID) ([]domain.Notification, error)
}
