package hub

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

// SignalingRelay forwards opaque WebRTC negotiation payloads between two
// call participants. It never parses SDP or ICE content, which keeps it
// media-protocol-agnostic; the hub carries no media.
type SignalingRelay struct {
	calls    *CallCoordinator
	registry *Registry
}

func NewSignalingRelay(calls *CallCoordinator, registry *Registry) *SignalingRelay {
	return &SignalingRelay{calls: calls, registry: registry}
}

// Relay passes one payload from fromID to toID within a room's call. The
// target is looked up in the call session's own participant registry, not
// the global connection registry: an app-wide connection is not enough to
// receive call signaling. A missing target is dropped silently; by the time
// relay runs the peer may have left, and negotiation self-heals with a
// fresh offer rather than relay-level retry.
func (r *SignalingRelay) Relay(roomID domain.RoomID, fromID, toID domain.UserID, kind domain.SignalKind, payload json.RawMessage) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown signal kind %q", core.ErrValidation, kind)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty signal payload", core.ErrValidation)
	}
	if !r.calls.HasParticipant(roomID, fromID) || !r.calls.HasParticipant(roomID, toID) {
		log.Debug().Str("module", "hub.relay").Str("room", string(roomID)).
			Str("from", string(fromID)).Str("to", string(toID)).
			Str("kind", string(kind)).Msg("target not in call, dropped")
		return nil
	}
	sess, ok := r.registry.Get(toID)
	if !ok {
		log.Debug().Str("module", "hub.relay").Str("to", string(toID)).Msg("target offline, dropped")
		return nil
	}
	sendEvent(sess, EvSignal, signalEvent{
		RoomID:  roomID,
		FromID:  fromID,
		Kind:    kind,
		Payload: payload,
	})
	return nil
}
