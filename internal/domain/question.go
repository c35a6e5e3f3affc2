package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxQuestionLen = 1000

var (
	ErrQuestionEmpty   = errors.New("question empty")
	ErrQuestionTooLong = errors.New("question too long")
	ErrInvalidVoteKind = errors.New("invalid vote type")
)

type QuestionID string

type VoteKind string

const (
	VoteUp     VoteKind = "upvote"
	VoteDown   VoteKind = "downvote"
	VoteRemove VoteKind = "remove"
)

// ParseVoteKind validates a wire-level vote type. VoteRemove is a valid
// request but never a stored vote.
func ParseVoteKind(s string) (VoteKind, error) {
	switch VoteKind(s) {
	case VoteUp, VoteDown, VoteRemove:
		return VoteKind(s), nil
	}
	return "", ErrInvalidVoteKind
}

// Question lives for the room's lifetime, it is never deleted.
// Invariant: Upvotes and Downvotes always equal the number of matching
// entries in Votes.
type Question struct {
	ID           QuestionID          `json:"id"`
	Text         string              `json:"text"`
	AuthorID     UserID              `json:"authorId"`
	AuthorEmail  string              `json:"authorEmail,omitempty"`
	AuthorSocket string              `json:"authorSocketId,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	Upvotes      int                 `json:"upvotes"`
	Downvotes    int                 `json:"downvotes"`
	Votes        map[UserID]VoteKind `json:"votes"`
	Answered     bool                `json:"answered"`
}

func NewQuestion(text string, author *User, socketID string) (*Question, error) {
	if text == "" {
		return nil, ErrQuestionEmpty
	}
	if len(text) > MaxQuestionLen {
		return nil, ErrQuestionTooLong
	}
	return &Question{
		ID:           QuestionID(uuid.NewString()),
		Text:         text,
		AuthorID:     author.ID,
		AuthorEmail:  author.Email,
		AuthorSocket: socketID,
		CreatedAt:    time.Now().UTC(),
		Votes:        make(map[UserID]VoteKind),
	}, nil
}

// Clone returns a deep copy safe to hand to encoders outside the room lock.
func (q *Question) Clone() *Question {
	cp := *q
	cp.Votes = make(map[UserID]VoteKind, len(q.Votes))
	for uid, k := range q.Votes {
		cp.Votes[uid] = k
	}
	return &cp
}
