package hub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// MessageRouter fans out room chat, direct chat and read receipts.
// Every message is persisted before its broadcast: the broadcast is the
// sender's "sent" confirmation and must never outrun durability.
type MessageRouter struct {
	registry *Registry
	presence *PresenceTracker
	subs     *SubscriptionTable
	friends  core.FriendshipStore
	members  core.RoomMembershipStore
	messages core.MessageStore
}

func NewMessageRouter(
	registry *Registry,
	presence *PresenceTracker,
	subs *SubscriptionTable,
	friends core.FriendshipStore,
	members core.RoomMembershipStore,
	messages core.MessageStore,
) *MessageRouter {
	return &MessageRouter{
		registry: registry,
		presence: presence,
		subs:     subs,
		friends:  friends,
		members:  members,
		messages: messages,
	}
}

// SendRoomMessage persists and broadcasts a chat message to the room's
// channel. Membership is checked against the persisted store, not presence.
func (r *MessageRouter) SendRoomMessage(ctx context.Context, senderID domain.UserID, roomID domain.RoomID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty message", core.ErrValidation)
	}
	ok, err := r.members.IsMember(ctx, senderID, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: membership lookup: %v", core.ErrTransientStore, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: not a member of room %s", core.ErrPermission, roomID)
	}

	msg := &domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: r.senderName(senderID),
		Content:    content,
		SentAt:     time.Now(),
	}
	if _, err := r.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: message append: %v", core.ErrTransientStore, err)
	}

	r.presence.Heartbeat(senderID, roomID, "")
	if err := r.members.TouchRoom(ctx, roomID, msg.SentAt); err != nil {
		log.Warn().Err(err).Str("module", "hub.router").Str("room", string(roomID)).Msg("room lastActive refresh failed")
	}
	r.broadcast(domain.RoomChannel(roomID), EvNewMessage, msg)
	return msg, nil
}

// SendSystemMessage pushes a hub-originated message down the same room
// broadcast path, tagged as system, with no sender heartbeat.
func (r *MessageRouter) SendSystemMessage(ctx context.Context, roomID domain.RoomID, content string) error {
	msg := &domain.Message{
		ID:         domain.MessageID(uuid.NewString()),
		RoomID:     roomID,
		SenderName: "System",
		Content:    content,
		IsSystem:   true,
		SentAt:     time.Now(),
	}
	if _, err := r.messages.Append(ctx, msg); err != nil {
		return fmt.Errorf("%w: system message append: %v", core.ErrTransientStore, err)
	}
	r.broadcast(domain.RoomChannel(roomID), EvNewMessage, msg)
	return nil
}

// SendDirectMessage persists and broadcasts a 1:1 message on the symmetric
// conversation channel. When the recipient is online but not listening on
// that channel, an out-of-band preview notification is delivered instead.
func (r *MessageRouter) SendDirectMessage(ctx context.Context, senderID, recipientID domain.UserID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty message", core.ErrValidation)
	}
	ok, err := r.friends.AreFriends(ctx, senderID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("%w: friendship lookup: %v", core.ErrTransientStore, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s and %s are not friends", core.ErrPermission, senderID, recipientID)
	}

	msg := &domain.Message{
		ID:          domain.MessageID(uuid.NewString()),
		SenderID:    senderID,
		SenderName:  r.senderName(senderID),
		RecipientID: recipientID,
		Content:     content,
		SentAt:      time.Now(),
	}
	if _, err := r.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: message append: %v", core.ErrTransientStore, err)
	}

	ch := domain.DirectChannel(senderID, recipientID)
	r.broadcast(ch, EvNewDirect, msg)

	if !r.subs.UserSubscribed(ch, recipientID) {
		if sess, online := r.registry.Get(recipientID); online {
			sendEvent(sess, EvDirectNotify, directNotifyEvent{
				SenderID:   senderID,
				SenderName: msg.SenderName,
				Preview:    msg.Preview(),
			})
		}
	}
	return msg, nil
}

// MarkRead bulk-updates persisted unread flags and broadcasts a read
// receipt on the conversation channel.
func (r *MessageRouter) MarkRead(ctx context.Context, readerID, counterpartyID domain.UserID) error {
	n, err := r.messages.MarkRead(ctx, readerID, counterpartyID)
	if err != nil {
		return fmt.Errorf("%w: mark read: %v", core.ErrTransientStore, err)
	}
	r.broadcast(domain.DirectChannel(readerID, counterpartyID), EvMessagesRead, messagesReadEvent{
		ReaderID:       readerID,
		CounterpartyID: counterpartyID,
		Count:          n,
	})
	return nil
}

func (r *MessageRouter) broadcast(ch domain.ChannelID, typ string, data any) {
	f, ok := encodeEvent(typ, data)
	if !ok {
		return
	}
	subs := r.subs.Subscribers(ch)
	sent := 0
	for _, sess := range subs {
		if err := sess.Signal().TrySend(f); err != nil {
			continue
		}
		sent++
	}
	log.Debug().Str("module", "hub.router").Str("channel", string(ch)).
		Str("event", typ).Int("sent_to", sent).Int("subscribers", len(subs)).Msg("broadcast")
}

func (r *MessageRouter) senderName(uid domain.UserID) string {
	if sess, ok := r.registry.Get(uid); ok {
		return sess.User().Username
	}
	return ""
}
