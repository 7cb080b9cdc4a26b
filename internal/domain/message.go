package domain

import "time"

type MessageID string

// Message is a chat message, either room-scoped (RecipientID empty) or
// direct (RoomID empty). Persistence is the store's concern.
type Message struct {
	ID          MessageID `json:"id"`
	RoomID      RoomID    `json:"roomId,omitempty"`
	SenderID    UserID    `json:"senderId"`
	SenderName  string    `json:"senderName,omitempty"`
	RecipientID UserID    `json:"recipientId,omitempty"`
	Content     string    `json:"content"`
	IsSystem    bool      `json:"isSystem,omitempty"`
	Read        bool      `json:"read"`
	SentAt      time.Time `json:"sentAt"`
}

// Channel returns the broadcast channel this message belongs to.
func (m Message) Channel() ChannelID {
	if m.RecipientID != "" {
		return DirectChannel(m.SenderID, m.RecipientID)
	}
	return RoomChannel(m.RoomID)
}

const previewLen = 30

// Preview truncates the content for an out-of-band notification.
func (m Message) Preview() string {
	r := []rune(m.Content)
	if len(r) <= previewLen {
		return m.Content
	}
	return string(r[:previewLen]) + "…"
}
