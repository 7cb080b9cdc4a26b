package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
)

// Inbound event envelope. Handlers re-unmarshal data into their own
// payload structs.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (ctl *Controller) dispatch(ctx context.Context, sess core.ClientSession, c *wsConn, data []byte) {
	var env inbound
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad json")
		ctl.sendError(c, "validation-error", "malformed payload")
		return
	}

	switch env.Type {
	case "join-room":
		ctl.handleJoinRoom(sess, c, env.Data)
	case "leave-room":
		ctl.handleLeaveRoom(sess, c, env.Data)
	case "send-message":
		ctl.handleSendMessage(ctx, sess, c, env.Data)
	case "heartbeat":
		ctl.handleHeartbeat(sess, c, env.Data)
	case "join-direct-chat":
		ctl.handleJoinDirectChat(sess, c, env.Data)
	case "leave-direct-chat":
		ctl.handleLeaveDirectChat(sess, c, env.Data)
	case "send-direct-message":
		ctl.handleSendDirectMessage(ctx, sess, c, env.Data)
	case "mark-messages-read":
		ctl.handleMarkRead(ctx, sess, c, env.Data)
	case "join-call":
		ctl.handleJoinCall(ctx, sess, c, env.Data)
	case "leave-call":
		ctl.handleLeaveCall(ctx, sess, c, env.Data)
	case "signal":
		ctl.handleSignal(sess, c, env.Data)
	case "media-state-change":
		ctl.handleMediaState(sess, c, env.Data)
	case "speaking-status-change":
		ctl.handleSpeakingStatus(sess, c, env.Data)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown event")
		ctl.sendError(c, "validation-error", "unknown event type")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *wsConn, code, message string) {
	ctl.sendJSON(c, map[string]any{
		"type": "error",
		"data": map[string]string{"code": code, "message": message},
	})
}

// reportErr maps an action-scoped error to an error event for the
// initiating connection only.
func (ctl *Controller) reportErr(c *wsConn, err error) {
	ctl.sendError(c, core.ErrorCode(err), err.Error())
}
