package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	meta *domain.Room

	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	byUser map[domain.UserID]SessionID

	questions []*domain.Question
	byQID     map[domain.QuestionID]*domain.Question

	currentPage int
	transcript  domain.TranscriptSnapshot
}

func NewRoomService(meta *domain.Room) RoomService {
	return &roomImpl{
		meta:   meta,
		bySID:  make(map[SessionID]MemberSession),
		byUser: make(map[domain.UserID]SessionID),
		byQID:  make(map[domain.QuestionID]*domain.Question),
	}
}

func (r *roomImpl) Meta() *domain.Room         { return r.meta }
func (r *roomImpl) JoinCode() domain.JoinCode  { return r.meta.JoinCode }
func (r *roomImpl) PresenterID() domain.UserID { return r.meta.PresenterID }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// AddMember registers a user's connection. Membership is idempotent per
// user id: a second session for the same user replaces the first instead of
// growing the member set.
func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) {
	u := ms.User()
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byUser[u.ID]; ok && old != sid {
		delete(r.bySID, old)
	}
	r.bySID[sid] = ms
	r.byUser[u.ID] = sid
	log.Info().Str("module", "core.room").Str("code", string(r.meta.JoinCode)).
		Str("sid", string(sid)).Str("user", string(u.ID)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) (*domain.User, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return nil, len(r.byUser)
	}
	u := ms.User()
	delete(r.bySID, sid)
	// A replaced session must not evict the user's live one.
	if cur, ok := r.byUser[u.ID]; ok && cur == sid {
		delete(r.byUser, u.ID)
	}
	log.Info().Str("module", "core.room").Str("code", string(r.meta.JoinCode)).
		Str("sid", string(sid)).Str("user", string(u.ID)).Msg("member removed")
	return u, len(r.byUser)
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.byUser))
	for uid, sid := range r.byUser {
		ms := r.bySID[sid]
		if ms == nil {
			continue
		}
		out = append(out, MemberDTO{
			ID:        uid,
			Email:     ms.User().Email,
			Presenter: uid == r.meta.PresenterID,
		})
	}
	return out
}

func (r *roomImpl) PostQuestion(q *domain.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, q)
	r.byQID[q.ID] = q
	log.Info().Str("module", "core.room").Str("code", string(r.meta.JoinCode)).
		Str("question", string(q.ID)).Str("author", string(q.AuthorID)).Msg("question posted")
}

func (r *roomImpl) Questions() []*domain.Question {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Question, 0, len(r.questions))
	for _, q := range r.questions {
		out = append(out, q.Clone())
	}
	return out
}

// Vote toggles a user's vote on a question. Whatever the sequence of calls,
// one user contributes at most one net vote: an existing vote is always
// retracted before the new one (if any) is counted.
func (r *roomImpl) Vote(qid domain.QuestionID, voter domain.UserID, kind domain.VoteKind) (*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case domain.VoteUp, domain.VoteDown, domain.VoteRemove:
	default:
		return nil, domain.ErrInvalidVoteKind
	}
	q, ok := r.byQID[qid]
	if !ok {
		return nil, ErrQuestionNotFound
	}

	if prev, ok := q.Votes[voter]; ok {
		switch prev {
		case domain.VoteUp:
			q.Upvotes--
		case domain.VoteDown:
			q.Downvotes--
		}
	}

	switch kind {
	case domain.VoteUp:
		q.Upvotes++
		q.Votes[voter] = domain.VoteUp
	case domain.VoteDown:
		q.Downvotes++
		q.Votes[voter] = domain.VoteDown
	case domain.VoteRemove:
		delete(q.Votes, voter)
	}

	return q.Clone(), nil
}

func (r *roomImpl) ToggleAnswered(qid domain.QuestionID, caller domain.UserID) (*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.meta.PresenterID {
		return nil, ErrNotPresenter
	}
	q, ok := r.byQID[qid]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	q.Answered = !q.Answered
	log.Info().Str("module", "core.room").Str("code", string(r.meta.JoinCode)).
		Str("question", string(qid)).Bool("answered", q.Answered).Msg("answered toggled")
	return q.Clone(), nil
}

func (r *roomImpl) CurrentPage() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentPage
}

func (r *roomImpl) SetCurrentPage(caller domain.UserID, page int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.meta.PresenterID {
		return ErrNotPresenter
	}
	r.currentPage = page
	return nil
}

// SetTranscript overwrites the stored snapshot wholesale (last write wins)
// and stamps it with the room's monotonic sequence number.
func (r *roomImpl) SetTranscript(caller domain.UserID, snap domain.TranscriptSnapshot) (domain.TranscriptSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.meta.PresenterID {
		return domain.TranscriptSnapshot{}, ErrNotPresenter
	}
	snap.Seq = r.transcript.Seq + 1
	r.transcript = snap
	r.currentPage = snap.CurrentPage
	return snap, nil
}

func (r *roomImpl) Transcript() (domain.TranscriptSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transcript, r.transcript.Active()
}

// Publish fans a frame out to every member, sender included.
func (r *roomImpl) Publish(data Frame) PublishResult {
	return r.fanOut("", data)
}

// Broadcast fans a frame out to everyone except the sender.
func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	return r.fanOut(from, data)
}

func (r *roomImpl) fanOut(skip SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range r.bySID {
		if skip != "" && sid == skip {
			continue
		}
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("code", string(r.meta.JoinCode)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("fan-out result")
	return res
}
