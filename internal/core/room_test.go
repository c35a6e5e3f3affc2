package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func newTestRoom(t *testing.T, presenter domain.UserID) core.RoomService {
	t.Helper()
	return core.NewRoomService(&domain.Room{
		JoinCode:    "TESTCODE",
		PresenterID: presenter,
	})
}

func addUser(t *testing.T, room core.RoomService, sid core.SessionID, uid domain.UserID) *domain.User {
	t.Helper()
	u, err := domain.NewUser(uid, "")
	require.NoError(t, err)
	room.AddMember(sid, core.NewMemberSession(u, nopConn{}))
	return u
}

func postQuestion(t *testing.T, room core.RoomService, author domain.UserID, text string) *domain.Question {
	t.Helper()
	u, err := domain.NewUser(author, "")
	require.NoError(t, err)
	q, err := domain.NewQuestion(text, u, "sid-x")
	require.NoError(t, err)
	room.PostQuestion(q)
	return q
}

// checkVoteInvariant asserts counters always mirror the votes map.
func checkVoteInvariant(t *testing.T, q *domain.Question) {
	t.Helper()
	up, down := 0, 0
	for _, k := range q.Votes {
		switch k {
		case domain.VoteUp:
			up++
		case domain.VoteDown:
			down++
		default:
			t.Fatalf("stored vote kind %q should never appear", k)
		}
	}
	if q.Upvotes != up || q.Downvotes != down {
		t.Fatalf("counters diverged: upvotes=%d downvotes=%d, map has up=%d down=%d",
			q.Upvotes, q.Downvotes, up, down)
	}
}

func TestVoteToggle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sequence []domain.VoteKind
		wantUp   int
		wantDown int
	}{
		{"single_upvote", []domain.VoteKind{domain.VoteUp}, 1, 0},
		{"single_downvote", []domain.VoteKind{domain.VoteDown}, 0, 1},
		{"switch_up_to_down", []domain.VoteKind{domain.VoteUp, domain.VoteDown}, 0, 1},
		{"switch_down_to_up", []domain.VoteKind{domain.VoteDown, domain.VoteUp}, 1, 0},
		{"repeat_upvote", []domain.VoteKind{domain.VoteUp, domain.VoteUp, domain.VoteUp}, 1, 0},
		{"remove_after_up", []domain.VoteKind{domain.VoteUp, domain.VoteRemove}, 0, 0},
		{"remove_without_vote", []domain.VoteKind{domain.VoteRemove}, 0, 0},
		{"flip_flop", []domain.VoteKind{domain.VoteUp, domain.VoteDown, domain.VoteUp, domain.VoteDown}, 0, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			room := newTestRoom(t, "presenter")
			q := postQuestion(t, room, "author", "Why?")

			var last *domain.Question
			for _, kind := range tt.sequence {
				var err error
				last, err = room.Vote(q.ID, "voter", kind)
				require.NoError(t, err)
				checkVoteInvariant(t, last)
			}
			assert.Equal(t, tt.wantUp, last.Upvotes)
			assert.Equal(t, tt.wantDown, last.Downvotes)
		})
	}
}

func TestVoteMultipleUsers(t *testing.T) {
	t.Parallel()
	room := newTestRoom(t, "presenter")
	q := postQuestion(t, room, "author", "How does it scale?")

	_, err := room.Vote(q.ID, "alice", domain.VoteUp)
	require.NoError(t, err)
	_, err = room.Vote(q.ID, "bob", domain.VoteUp)
	require.NoError(t, err)
	got, err := room.Vote(q.ID, "carol", domain.VoteDown)
	require.NoError(t, err)

	checkVoteInvariant(t, got)
	assert.Equal(t, 2, got.Upvotes)
	assert.Equal(t, 1, got.Downvotes)

	// alice switches; net contribution stays one vote
	got, err = room.Vote(q.ID, "alice", domain.VoteDown)
	require.NoError(t, err)
	checkVoteInvariant(t, got)
	assert.Equal(t, 1, got.Upvotes)
	assert.Equal(t, 2, got.Downvotes)
}

func TestVoteUnknownQuestion(t *testing.T) {
	t.Parallel()
	room := newTestRoom(t, "presenter")
	_, err := room.Vote("missing", "alice", domain.VoteUp)
	assert.ErrorIs(t, err, core.ErrQuestionNotFound)
}

func FuzzVoteInvariant(f *testing.F) {
	f.Add([]byte{0, 1, 2})
	f.Add([]byte{5, 5, 5, 5})
	f.Add([]byte{0, 3, 6, 9, 12})

	kinds := []domain.VoteKind{domain.VoteUp, domain.VoteDown, domain.VoteRemove}
	voters := []domain.UserID{"u1", "u2", "u3", "u4"}

	f.Fuzz(func(t *testing.T, ops []byte) {
		room := core.NewRoomService(&domain.Room{JoinCode: "FUZZ", PresenterID: "p"})
		author, _ := domain.NewUser("author", "")
		q, err := domain.NewQuestion("fuzz me", author, "")
		if err != nil {
			t.Fatal(err)
		}
		room.PostQuestion(q)

		var last *domain.Question
		for _, op := range ops {
			voter := voters[int(op)%len(voters)]
			kind := kinds[int(op/4)%len(kinds)]
			last, err = room.Vote(q.ID, voter, kind)
			if err != nil {
				t.Fatalf("vote %v by %s: %v", kind, voter, err)
			}
			checkVoteInvariant(t, last)
		}
		if last != nil && last.Upvotes-last.Downvotes != netOf(last) {
			t.Fatalf("differential mismatch: %d-%d vs map %d",
				last.Upvotes, last.Downvotes, netOf(last))
		}
	})
}

func netOf(q *domain.Question) int {
	n := 0
	for _, k := range q.Votes {
		if k == domain.VoteUp {
			n++
		} else if k == domain.VoteDown {
			n--
		}
	}
	return n
}

func TestMembershipIdempotent(t *testing.T) {
	t.Parallel()
	room := newTestRoom(t, "presenter")

	addUser(t, room, "sid-1", "alice")
	assert.Equal(t, 1, room.MemberCount())

	// same user from a second tab must not grow the member set
	addUser(t, room, "sid-2", "alice")
	assert.Equal(t, 1, room.MemberCount())

	addUser(t, room, "sid-3", "bob")
	assert.Equal(t, 2, room.MemberCount())

	// removing the stale first session must not evict alice's live one
	_, remaining := room.RemoveMember("sid-1")
	assert.Equal(t, 2, remaining)

	u, remaining := room.RemoveMember("sid-2")
	require.NotNil(t, u)
	assert.Equal(t, domain.UserID("alice"), u.ID)
	assert.Equal(t, 1, remaining)
}

func TestToggleAnsweredAuthority(t *testing.T) {
	t.Parallel()
	room := newTestRoom(t, "presenter")
	q := postQuestion(t, room, "author", "When is lunch?")

	_, err := room.ToggleAnswered(q.ID, "attendee")
	assert.ErrorIs(t, err, core.ErrNotPresenter)

	got, err := room.ToggleAnswered(q.ID, "presenter")
	require.NoError(t, err)
	assert.True(t, got.Answered)

	// toggling again flips it back
	got, err = room.ToggleAnswered(q.ID, "presenter")
	require.NoError(t, err)
	assert.False(t, got.Answered)
}

func TestPageChangeAuthority(t *testing.T) {
	t.Parallel()
	room := newTestRoom(t, "presenter")

	assert.ErrorIs(t, room.SetCurrentPage("attendee", 4), core.ErrNotPresenter)
	assert.Equal(t, 0, room.CurrentPage())

	require.NoError(t, room.SetCurrentPage("presenter", 4))
	assert.Equal(t, 4, room.CurrentPage())
}

func TestTranscriptLastWriteWins(t *testing.T) {
	t.Parallel()
	room := newTestRoom(t, "presenter")

	_, active := room.Transcript()
	assert.False(t, active, "fresh room must be idle")

	_, err := room.SetTranscript("attendee", domain.TranscriptSnapshot{Transcription: "nope"})
	assert.ErrorIs(t, err, core.ErrNotPresenter)

	first, err := room.SetTranscript("presenter", domain.TranscriptSnapshot{Transcription: "hello", CurrentPage: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Seq)

	second, err := room.SetTranscript("presenter", domain.TranscriptSnapshot{Transcription: "hello world", CurrentPage: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Seq, "sequence must be monotonic")

	got, active := room.Transcript()
	assert.True(t, active)
	assert.Equal(t, "hello world", got.Transcription)
	assert.Equal(t, 2, room.CurrentPage(), "snapshot page becomes the room page")
}

func TestQuestionsAreCopies(t *testing.T) {
	t.Parallel()
	room := newTestRoom(t, "presenter")
	postQuestion(t, room, "author", "Is this safe?")

	qs := room.Questions()
	require.Len(t, qs, 1)
	qs[0].Votes["mallory"] = domain.VoteUp
	qs[0].Upvotes = 99

	fresh := room.Questions()
	assert.Equal(t, 0, fresh[0].Upvotes, "callers must not reach the stored question")
	assert.Empty(t, fresh[0].Votes)
}

// Identity can be replaced mid-session (authenticate after join) while
// other goroutines snapshot the member list. Run with -race.
func TestIdentitySwapDuringSnapshots(t *testing.T) {
	room := newTestRoom(t, "presenter")
	u, err := domain.NewUser("alice", "old@example.com")
	require.NoError(t, err)
	sess := core.NewMemberSession(u, nopConn{})
	room.AddMember("sid-1", sess)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			fresh, err := domain.NewUser("alice", "new@example.com")
			if err != nil {
				t.Error(err)
				return
			}
			sess.SetUser(fresh)
		}
	}()
	for i := 0; i < 500; i++ {
		_ = room.MembersSnapshot()
	}
	<-done

	snap := room.MembersSnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "new@example.com", snap[0].Email)
	assert.Equal(t, domain.UserID("alice"), snap[0].ID)
}
