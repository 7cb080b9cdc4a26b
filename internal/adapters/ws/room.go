package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

func (ctl *Controller) handleJoinRoom(sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, "validation-error", "bad join-room payload")
		return
	}

	roster, err := ctl.Hub.JoinRoom(sess.User().ID, domain.RoomID(p.RoomID))
	if err != nil {
		ctl.reportErr(c, err)
		return
	}
	ctl.sendJSON(c, map[string]any{
		"type": "room-users",
		"data": map[string]any{
			"roomId": p.RoomID,
			"users":  roster,
		},
	})
}

func (ctl *Controller) handleLeaveRoom(sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, "validation-error", "bad leave-room payload")
		return
	}
	ctl.Hub.LeaveRoom(sess.User().ID, domain.RoomID(p.RoomID))
}

func (ctl *Controller) handleSendMessage(ctx context.Context, sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID  string `json:"roomId"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, "validation-error", "bad send-message payload")
		return
	}
	if _, err := ctl.Hub.Router.SendRoomMessage(ctx, sess.User().ID, domain.RoomID(p.RoomID), p.Content); err != nil {
		log.Debug().Err(err).Str("module", "ws").Str("user", string(sess.User().ID)).Msg("send-message rejected")
		ctl.reportErr(c, err)
	}
}

func (ctl *Controller) handleHeartbeat(sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		RoomID string `json:"roomId"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		ctl.sendError(c, "validation-error", "bad heartbeat payload")
		return
	}
	ctl.Hub.Presence.Heartbeat(sess.User().ID, domain.RoomID(p.RoomID), domain.PresenceStatus(p.Status))
}
