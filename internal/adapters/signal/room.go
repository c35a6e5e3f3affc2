package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/app"
	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

func (ctl *Controller) handleAuthenticate(
	ctx context.Context,
	sid core.SessionID,
	conn *WsConn,
	data []byte,
) {
	var p struct {
		Type  string `json:"type"`
		Token string `json:"token,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "Invalid authenticate payload")
		return
	}

	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)
	if p.Token != "" && ctl.Auth != nil {
		verified, err := ctl.Auth.Verify(p.Token)
		if err != nil {
			// Bad tokens degrade to the anonymous identity, never a
			// hard failure.
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).
				Msg("token rejected, staying anonymous")
		} else {
			user = verified
			ctl.Orch.Registry.Authenticate(ctx, sid, user)
			if sess, ok := ctl.Orch.Registry.GetSession(sid); ok {
				sess.SetUser(user)
			}
		}
	}

	ctl.sendJSON(conn, struct {
		Type string      `json:"type"`
		User domain.User `json:"user"`
	}{
		Type: "authenticated",
		User: *user,
	})
}

type createRoomPayload struct {
	Type      string   `json:"type"`
	PDFURL    string   `json:"pdfUrl,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	PageTexts []string `json:"pageTexts,omitempty"`
}

func (ctl *Controller) handleCreateRoom(
	ctx context.Context,
	sid core.SessionID,
	conn *WsConn,
	data []byte,
	withPDF bool,
) {
	var p createRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "Invalid create-room payload")
		return
	}
	if withPDF && p.PDFURL == "" {
		ctl.sendError(conn, "pdfUrl is required")
		return
	}

	seed := app.RoomSeed{}
	if withPDF {
		seed = app.RoomSeed{PDFURL: p.PDFURL, Summary: p.Summary, PageTexts: p.PageTexts}
	}

	room, prev, err := ctl.Orch.CreateRoom(ctx, sid, seed)
	if prev.User != nil {
		ctl.broadcastDeparture(ctx, prev)
	}
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).
		Str("code", string(room.JoinCode())).Msg("room created")

	ctl.sendJSON(conn, struct {
		Type     string          `json:"type"`
		JoinCode domain.JoinCode `json:"joinCode"`
	}{
		Type:     "room-created",
		JoinCode: room.JoinCode(),
	})
	ctl.sendJSON(conn, ctl.roomSnapshot(room))

	if ctl.Simulator != nil {
		go ctl.runSimulator(ctx, room)
	}
}

// runSimulator feeds demo transcript snapshots through the same relay path
// a presenter client would use. It stops with the presenter's connection.
func (ctl *Controller) runSimulator(ctx context.Context, room core.RoomService) {
	presenter := room.PresenterID()
	ctl.Simulator.Run(ctx, func(snap domain.TranscriptSnapshot) {
		stamped, err := room.SetTranscript(presenter, snap)
		if err != nil {
			return
		}
		ctl.BroadcastRoom(ctx, room, transcriptEvent(room.JoinCode(), stamped))
	})
}

func (ctl *Controller) handleJoinRoom(
	ctx context.Context,
	sid core.SessionID,
	conn *WsConn,
	data []byte,
) {
	var p struct {
		Type     string `json:"type"`
		JoinCode string `json:"joinCode"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.JoinCode == "" {
		ctl.sendError(conn, "joinCode is required")
		return
	}

	room, prev, err := ctl.Orch.Join(ctx, sid, domain.JoinCode(p.JoinCode))
	// Switching rooms: the old room's survivors hear about it even when
	// the new join itself fails.
	if prev.User != nil {
		ctl.broadcastDeparture(ctx, prev)
	}
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	ctl.sendJSON(conn, ctl.roomSnapshot(room))

	// A late joiner sees the live transcript immediately.
	if snap, active := room.Transcript(); active {
		ctl.sendJSON(conn, transcriptEvent(room.JoinCode(), snap))
	}

	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)
	ctl.BroadcastOthers(ctx, room, sid, struct {
		Type        string      `json:"type"`
		User        domain.User `json:"user"`
		MemberCount int         `json:"memberCount"`
	}{
		Type:        "user-joined",
		User:        *user,
		MemberCount: room.MemberCount(),
	})
}

// handleLeave exits the current room without dropping the connection.
func (ctl *Controller) handleLeave(ctx context.Context, sid core.SessionID, conn *WsConn) {
	dep, left := ctl.Orch.Leave(ctx, sid)
	ctl.sendJSON(conn, map[string]any{"type": "left"})
	if left {
		ctl.broadcastDeparture(ctx, dep)
	}
}

func (ctl *Controller) onDisconnect(ctx context.Context, sid core.SessionID) {
	dep, left := ctl.Orch.OnDisconnect(ctx, sid)
	if left {
		ctl.broadcastDeparture(ctx, dep)
	}
}

// broadcastDeparture notifies the survivors; a room that died with its last
// member vanishes silently.
func (ctl *Controller) broadcastDeparture(ctx context.Context, dep app.Departure) {
	if dep.Deleted || dep.User == nil {
		return
	}
	ctl.BroadcastRoom(ctx, dep.Room, struct {
		Type        string      `json:"type"`
		User        domain.User `json:"user"`
		MemberCount int         `json:"memberCount"`
	}{
		Type:        "user-left",
		User:        *dep.User,
		MemberCount: dep.Remaining,
	})
}

type roomSnapshotDTO struct {
	Type        string             `json:"type"`
	JoinCode    domain.JoinCode    `json:"joinCode"`
	PresenterID domain.UserID      `json:"presenterId"`
	Members     []core.MemberDTO   `json:"members"`
	MemberCount int                `json:"memberCount"`
	Questions   []*domain.Question `json:"questions"`
	PDFURL      string             `json:"pdfUrl,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	PageTexts   []string           `json:"pageTexts,omitempty"`
	CurrentPage int                `json:"currentPage"`
}

func (ctl *Controller) roomSnapshot(room core.RoomService) roomSnapshotDTO {
	meta := room.Meta()
	return roomSnapshotDTO{
		Type:        "joined-room",
		JoinCode:    meta.JoinCode,
		PresenterID: meta.PresenterID,
		Members:     room.MembersSnapshot(),
		MemberCount: room.MemberCount(),
		Questions:   room.Questions(),
		PDFURL:      meta.PDFURL,
		Summary:     meta.Summary,
		PageTexts:   meta.PageTexts,
		CurrentPage: room.CurrentPage(),
	}
}
