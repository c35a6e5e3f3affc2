package signal

import (
	"context"
	"encoding/json"

	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

type transcriptDTO struct {
	Type     string          `json:"type"`
	JoinCode domain.JoinCode `json:"joinCode"`
	domain.TranscriptSnapshot
}

func transcriptEvent(code domain.JoinCode, snap domain.TranscriptSnapshot) transcriptDTO {
	return transcriptDTO{
		Type:               "transcription-update",
		JoinCode:           code,
		TranscriptSnapshot: snap,
	}
}

// handleTranscriptionUpdate stores the presenter's snapshot wholesale and
// relays it verbatim. The server is a push-relay, not an aggregator.
func (ctl *Controller) handleTranscriptionUpdate(
	ctx context.Context,
	sid core.SessionID,
	conn *WsConn,
	data []byte,
) {
	var p struct {
		Type          string          `json:"type"`
		JoinCode      string          `json:"joinCode"`
		Transcription string          `json:"transcription"`
		History       []string        `json:"history,omitempty"`
		CurrentPage   int             `json:"currentPage"`
		ByPage        json.RawMessage `json:"transcriptionsByPage,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.JoinCode == "" {
		ctl.sendError(conn, "Invalid transcription-update payload")
		return
	}

	room, err := ctl.Orch.Room(domain.JoinCode(p.JoinCode))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)
	snap, err := room.SetTranscript(user.ID, domain.TranscriptSnapshot{
		Transcription: p.Transcription,
		History:       p.History,
		CurrentPage:   p.CurrentPage,
		ByPage:        p.ByPage,
	})
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	ctl.BroadcastRoom(ctx, room, transcriptEvent(room.JoinCode(), snap))
}

func (ctl *Controller) handlePageChange(
	ctx context.Context,
	sid core.SessionID,
	conn *WsConn,
	data []byte,
) {
	var p struct {
		Type     string `json:"type"`
		Page     int    `json:"page"`
		JoinCode string `json:"joinCode"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.JoinCode == "" {
		ctl.sendError(conn, "Invalid pdf-page-change payload")
		return
	}

	room, err := ctl.Orch.Room(domain.JoinCode(p.JoinCode))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)
	if err := room.SetCurrentPage(user.ID, p.Page); err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	ctl.BroadcastRoom(ctx, room, struct {
		Type     string          `json:"type"`
		JoinCode domain.JoinCode `json:"joinCode"`
		Page     int             `json:"page"`
	}{
		Type:     "pdf-page-updated",
		JoinCode: room.JoinCode(),
		Page:     p.Page,
	})
}
