package core

import (
	"context"

	"github.com/promptdeck/promptdeck/internal/domain"
)

// Frame is a raw JSON payload ready for the wire.
type Frame []byte

// SessionID identifies one client connection (the socket-level identity),
// as opposed to domain.UserID which survives reconnects.
type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds a member's identity and its transport endpoint.
// This is what a room stores and fans out to. Identity is read and
// replaced concurrently (authenticate on one goroutine, snapshots on
// another), so access goes through the accessors; SetUser swaps the
// whole *domain.User, the pointed-to struct is never mutated in place.
type MemberSession interface {
	User() *domain.User
	Presenter() bool
	SetUser(*domain.User)
	SetPresenter(bool)
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID        domain.UserID `json:"id"`
	Email     string        `json:"email,omitempty"`
	Presenter bool          `json:"presenter,omitempty"`
}

// RoomService is the core-facing API of a room. It owns the membership set,
// the question list and the transcript snapshot, but never touches transport
// resources. Every read-modify-write sequence runs under the room's lock.
type RoomService interface {
	Meta() *domain.Room
	JoinCode() domain.JoinCode
	PresenterID() domain.UserID

	MemberCount() int
	MembersSnapshot() []MemberDTO
	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID) (removed *domain.User, remaining int)

	PostQuestion(q *domain.Question)
	Questions() []*domain.Question
	Vote(qid domain.QuestionID, voter domain.UserID, kind domain.VoteKind) (*domain.Question, error)
	ToggleAnswered(qid domain.QuestionID, caller domain.UserID) (*domain.Question, error)

	CurrentPage() int
	SetCurrentPage(caller domain.UserID, page int) error
	SetTranscript(caller domain.UserID, snap domain.TranscriptSnapshot) (domain.TranscriptSnapshot, error)
	Transcript() (domain.TranscriptSnapshot, bool)

	Publish(data Frame) PublishResult
	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	JoinCode    domain.JoinCode `json:"joinCode"`
	MemberCount int             `json:"memberCount"`
}

// RoomStore is the keyed-store seam for rooms: a swap to a durable or
// distributed backend must not touch handler logic.
type RoomStore interface {
	Create(meta *domain.Room) (RoomService, error)
	Get(code domain.JoinCode) (RoomService, bool)
	// DeleteIfEmpty removes the room only when it has no members left.
	// The emptiness check runs under the store lock so a concurrent join
	// cannot resurrect a dying room.
	DeleteIfEmpty(code domain.JoinCode) bool
	List() []RoomInfo
}

// SessionStore is the same seam for per-user session metadata.
type SessionStore interface {
	Get(ctx context.Context, uid domain.UserID) (*domain.Session, bool, error)
	Put(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, uid domain.UserID) error
	Iterate(ctx context.Context, fn func(*domain.Session) bool) error
}
