package domain

// ChannelID identifies a logical broadcast channel a connection can
// subscribe to: a room's chat stream or a direct conversation.
type ChannelID string

// RoomChannel returns the broadcast channel of a room's chat.
func RoomChannel(roomID RoomID) ChannelID {
	return ChannelID("room:" + string(roomID))
}

// DirectChannel returns the conversation channel for a pair of users.
// The key is order-independent: DirectChannel(a, b) == DirectChannel(b, a).
func DirectChannel(a, b UserID) ChannelID {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return ChannelID("dm:" + string(lo) + ":" + string(hi))
}
