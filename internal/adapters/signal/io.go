package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/core"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.onDisconnect(ctx, sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read end")
				return
			}
			ctl.dispatch(ctx, sid, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "Invalid message")
		return
	}

	// Handlers validate synchronously and reply with an error event; no
	// error crosses this boundary.
	switch env.Type {
	case "authenticate":
		ctl.handleAuthenticate(ctx, sid, c, data)
	case "create-room":
		ctl.handleCreateRoom(ctx, sid, c, data, false)
	case "create-room-with-pdf":
		ctl.handleCreateRoom(ctx, sid, c, data, true)
	case "join-room":
		ctl.handleJoinRoom(ctx, sid, c, data)
	case "leave":
		ctl.handleLeave(ctx, sid, c)
	case "post-question":
		ctl.handlePostQuestion(ctx, sid, c, data)
	case "vote-question":
		ctl.handleVoteQuestion(ctx, sid, c, data)
	case "get-questions":
		ctl.handleGetQuestions(sid, c, data)
	case "mark-answered":
		ctl.handleMarkAnswered(ctx, sid, c, data)
	case "transcription-update":
		ctl.handleTranscriptionUpdate(ctx, sid, c, data)
	case "pdf-page-change":
		ctl.handlePageChange(ctx, sid, c, data)
	case "ping":
		ctl.handlePing(c)
	case "whoami":
		ctl.handleWhoAmI(ctx, sid, c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, "Unknown event: "+env.Type)
	}
}

func marshalFrame(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("frame marshal")
		return nil, err
	}
	return b, nil
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := marshalFrame(v)
	if err != nil {
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *WsConn, msg string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": msg,
	})
}
