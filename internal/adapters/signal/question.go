package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

func (ctl *Controller) handlePostQuestion(
	ctx context.Context,
	sid core.SessionID,
	conn *WsConn,
	data []byte,
) {
	var p struct {
		Type     string `json:"type"`
		Question string `json:"question"`
		JoinCode string `json:"joinCode"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "Invalid post-question payload")
		return
	}
	if p.Question == "" {
		ctl.sendError(conn, "Question text is required")
		return
	}

	room, err := ctl.Orch.Room(domain.JoinCode(p.JoinCode))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)
	if ctl.PostRate != nil && !ctl.PostRate.Allow(user.ID) {
		ctl.sendError(conn, "Too many questions, slow down")
		return
	}

	q, err := domain.NewQuestion(p.Question, user, string(sid))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	room.PostQuestion(q)

	ctl.BroadcastRoom(ctx, room, struct {
		Type     string           `json:"type"`
		Question *domain.Question `json:"question"`
	}{
		Type:     "new-question",
		Question: q.Clone(),
	})
}

func (ctl *Controller) handleVoteQuestion(
	ctx context.Context,
	sid core.SessionID,
	conn *WsConn,
	data []byte,
) {
	var p struct {
		Type       string `json:"type"`
		QuestionID string `json:"questionId"`
		VoteType   string `json:"voteType"`
		JoinCode   string `json:"joinCode"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.QuestionID == "" {
		ctl.sendError(conn, "Invalid vote-question payload")
		return
	}

	kind, err := domain.ParseVoteKind(p.VoteType)
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	room, err := ctl.Orch.Room(domain.JoinCode(p.JoinCode))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)
	q, err := room.Vote(domain.QuestionID(p.QuestionID), user.ID, kind)
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	log.Debug().Str("module", "signal").Str("question", p.QuestionID).
		Str("voter", string(user.ID)).Str("kind", string(kind)).Msg("vote recorded")

	ctl.broadcastQuestionUpdated(ctx, room, q)
}

func (ctl *Controller) handleGetQuestions(
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

	room, err := ctl.Orch.Room(domain.JoinCode(p.JoinCode))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	// Caller only, no broadcast.
	ctl.sendJSON(conn, struct {
		Type      string             `json:"type"`
		JoinCode  domain.JoinCode    `json:"joinCode"`
		Questions []*domain.Question `json:"questions"`
	}{
		Type:      "questions-list",
		JoinCode:  room.JoinCode(),
		Questions: room.Questions(),
	})
}

func (ctl *Controller) handleMarkAnswered(
	ctx context.Context,
	sid core.SessionID,
	conn *WsConn,
	data []byte,
) {
	var p struct {
		Type       string `json:"type"`
		QuestionID string `json:"questionId"`
		JoinCode   string `json:"joinCode"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.QuestionID == "" {
		ctl.sendError(conn, "Invalid mark-answered payload")
		return
	}

	room, err := ctl.Orch.Room(domain.JoinCode(p.JoinCode))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	user := ctl.Orch.Registry.GetOrCreateUser(ctx, sid)
	q, err := room.ToggleAnswered(domain.QuestionID(p.QuestionID), user.ID)
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}

	ctl.broadcastQuestionUpdated(ctx, room, q)
}

func (ctl *Controller) broadcastQuestionUpdated(ctx context.Context, room core.RoomService, q *domain.Question) {
	ctl.BroadcastRoom(ctx, room, struct {
		Type     string           `json:"type"`
		Question *domain.Question `json:"question"`
	}{
		Type:     "question-updated",
		Question: q,
	})
}
