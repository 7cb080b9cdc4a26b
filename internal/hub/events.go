package hub

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// Outbound event types. Payloads ride in the envelope's data field.
const (
	EvOnlineFriends   = "online-friends"
	EvFriendOnline    = "friend-online"
	EvFriendOffline   = "friend-offline"
	EvRoomUsers       = "room-users"
	EvUserJoined      = "user-joined"
	EvUserLeft        = "user-left"
	EvNewMessage      = "new-message"
	EvNewDirect       = "new-direct-message"
	EvDirectNotify    = "direct-message-notification"
	EvMessagesRead    = "messages-read"
	EvCallJoined      = "call-joined"
	EvUserJoinedCall  = "user-joined-call"
	EvUserLeftCall    = "user-left-call"
	EvMediaChanged    = "user-media-changed"
	EvSpeakingStatus  = "user-speaking-status"
	EvSignal          = "signal"
	EvCallError       = "call-error"
	EvNotification    = "notification"
	EvError           = "error"
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// encodeEvent marshals one envelope so fan-outs serialize only once.
func encodeEvent(typ string, data any) (core.Frame, bool) {
	b, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("event", typ).Msg("encode event")
		return nil, false
	}
	return core.Frame(b), true
}

// sendEvent delivers one event to one session, best effort.
func sendEvent(sess core.ClientSession, typ string, data any) {
	f, ok := encodeEvent(typ, data)
	if !ok {
		return
	}
	if err := sess.Signal().TrySend(f); err != nil {
		log.Debug().Err(err).Str("module", "hub").Str("event", typ).
			Str("user", string(sess.User().ID)).Msg("send dropped")
	}
}

type friendEvent struct {
	UserID domain.UserID `json:"userId"`
}

type onlineFriendsEvent struct {
	Friends []domain.UserID `json:"friends"`
}

type presenceEvent struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type directNotifyEvent struct {
	SenderID   domain.UserID `json:"senderId"`
	SenderName string        `json:"senderName"`
	Preview    string        `json:"preview"`
}

type messagesReadEvent struct {
	ReaderID       domain.UserID `json:"readerId"`
	CounterpartyID domain.UserID `json:"counterpartyId"`
	Count          int           `json:"count"`
}

type callParticipantEvent struct {
	RoomID      domain.RoomID           `json:"roomId"`
	Participant *domain.CallParticipant `json:"participant"`
}

type callLeftEvent struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type mediaChangedEvent struct {
	RoomID domain.RoomID     `json:"roomId"`
	UserID domain.UserID     `json:"userId"`
	Delta  domain.MediaDelta `json:"delta"`
}

type speakingEvent struct {
	RoomID     domain.RoomID `json:"roomId"`
	UserID     domain.UserID `json:"userId"`
	IsSpeaking bool          `json:"isSpeaking"`
}

type signalEvent struct {
	RoomID  domain.RoomID     `json:"roomId"`
	FromID  domain.UserID     `json:"fromId"`
	Kind    domain.SignalKind `json:"kind"`
	Payload json.RawMessage   `json:"payload"`
}

type notificationEvent struct {
	domain.Notification
	RelativeTime string `json:"relativeTime"`
}
