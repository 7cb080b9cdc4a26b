package ws

import (
	"context"
	"encoding/json"

	"github.com/avencel/studyhub/internal/core"
	"github.com/avencel/studyhub/internal/domain"
)

func (ctl *Controller) handleJoinDirectChat(sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		FriendID string `json:"friendId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.FriendID == "" {
		ctl.sendError(c, "validation-error", "bad join-direct-chat payload")
		return
	}
	if err := ctl.Hub.JoinDirectChat(sess.User().ID, domain.UserID(p.FriendID)); err != nil {
		ctl.reportErr(c, err)
	}
}

func (ctl *Controller) handleLeaveDirectChat(sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		FriendID string `json:"friendId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.FriendID == "" {
		ctl.sendError(c, "validation-error", "bad leave-direct-chat payload")
		return
	}
	ctl.Hub.LeaveDirectChat(sess.User().ID, domain.UserID(p.FriendID))
}

func (ctl *Controller) handleSendDirectMessage(ctx context.Context, sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		FriendID string `json:"friendId"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.FriendID == "" {
		ctl.sendError(c, "validation-error", "bad send-direct-message payload")
		return
	}
	if _, err := ctl.Hub.Router.SendDirectMessage(ctx, sess.User().ID, domain.UserID(p.FriendID), p.Content); err != nil {
		ctl.reportErr(c, err)
	}
}

func (ctl *Controller) handleMarkRead(ctx context.Context, sess core.ClientSession, c *wsConn, data []byte) {
	var p struct {
		FriendID string `json:"friendId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.FriendID == "" {
		ctl.sendError(c, "validation-error", "bad mark-messages-read payload")
		return
	}
	if err := ctl.Hub.Router.MarkRead(ctx, sess.User().ID, domain.UserID(p.FriendID)); err != nil {
		ctl.reportErr(c, err)
	}
}
