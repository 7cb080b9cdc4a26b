package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

func (ctl *Controller) handleJoinCall(ctx context.Context, sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, "validation-error", "bad join-call payload")
		return
	}

	peers, err := ctl.Hub.Calls.Join(ctx, domain.RoomID(p.RoomID), sess.User().ID)
	if err != nil {
		if errors.Is(err, core.ErrCall) {
			ctl.sendJSON(c, map[string]any{
				"type": "call-error",
				"data": map[string]string{"message": err.Error()},
			})
			return
		}
		ctl.reportErr(c, err)
		return
	}
	ctl.sendJSON(c, map[string]any{
		"type": "call-joined",
		"data": map[string]any{
			"roomId":       p.RoomID,
			"participants": peers,
		},
	})
}

func (ctl *Controller) handleLeaveCall(ctx context.Context, sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, "validation-error", "bad leave-call payload")
		return
	}
	ctl.Hub.Calls.Leave(ctx, domain.RoomID(p.RoomID), sess.User().ID)
}

func (ctl *Controller) handleSignal(sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID  string          `json:"roomId"`
		ToID    string          `json:"toId"`
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" || p.ToID == "" {
		ctl.sendError(c, "validation-error", "bad signal payload")
		return
	}
	err := ctl.Hub.Relay.Relay(
		domain.RoomID(p.RoomID),
		sess.User().ID,
		domain.UserID(p.ToID),
		domain.SignalKind(p.Kind),
		p.Payload,
	)
	if err != nil {
		ctl.reportErr(c, err)
	}
}

func (ctl *Controller) handleMediaState(sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID string            `json:"roomId"`
		Delta  domain.MediaDelta `json:"delta"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, "validation-error", "bad media-state-change payload")
		return
	}
	ctl.Hub.Calls.UpdateMedia(domain.RoomID(p.RoomID), sess.User().ID, p.Delta)
}

func (ctl *Controller) handleSpeakingStatus(sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID     string `json:"roomId"`
		IsSpeaking bool   `json:"isSpeaking"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, "validation-error", "bad speaking-status-change payload")
		return
	}
	ctl.Hub.Calls.UpdateSpeaking(domain.RoomID(p.RoomID), sess.User().ID, p.IsSpeaking)
}
