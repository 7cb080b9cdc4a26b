package domain

import "time"

// SignalKind tags a relayed WebRTC negotiation payload. The hub never
// inspects the payload itself.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "ice-candidate"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return true
	}
	return false
}

type ConnectionID string

// CallParticipant is one member of a room's call session.
type CallParticipant struct {
	UserID        UserID       `json:"userId"`
	Username      string       `json:"username"`
	RoomID        RoomID       `json:"roomId"`
	ConnectionID  ConnectionID `json:"-"`
	AudioEnabled  bool         `json:"audioEnabled"`
	VideoEnabled  bool         `json:"videoEnabled"`
	ScreenSharing bool         `json:"screenSharing"`
	IsSpeaking    bool         `json:"isSpeaking"`
	JoinedAt      time.Time    `json:"joinedAt"`
}

// MediaDelta is a partial update of a participant's media state.
// Nil fields are left untouched.
type MediaDelta struct {
	AudioEnabled  *bool `json:"audioEnabled,omitempty"`
	VideoEnabled  *bool `json:"videoEnabled,omitempty"`
	ScreenSharing *bool `json:"screenSharing,omitempty"`
}
