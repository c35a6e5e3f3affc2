package signal

import (
	"context"

	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

func (ctl *Controller) handlePing(conn *WsConn) {
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	})
}

func (ctl *Controller) handleWhoAmI(ctx context.Context, sid core.SessionID, conn *WsConn) {
	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)

	resp := struct {
		Type      string          `json:"type"`
		User      domain.User     `json:"user"`
		JoinCode  domain.JoinCode `json:"joinCode,omitempty"`
		Presenter bool            `json:"presenter,omitempty"`
	}{
		Type: "whoami",
		User: *user,
	}
	if code, _, ok := ctl.Orch.Registry.RoomOf(sid); ok {
		resp.JoinCode = code
	}
	if sess, ok := ctl.Orch.Registry.GetSession(sid); ok {
		resp.Presenter = sess.Presenter()
	}
	ctl.sendJSON(conn, resp)
}
