package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/internal/app"
	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
	"github.com/promptdeck/promptdeck/internal/store"
)

type captureConn struct {
	frames []core.Frame
	fail   bool
}

func (c *captureConn) TrySend(f core.Frame) error {
	if c.fail {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *captureConn) Close() {}

func newOrchestrator(t *testing.T) *app.Orchestrator {
	t.Helper()
	return &app.Orchestrator{
		Registry: app.NewRegistry(store.NewSessionStore()),
		Rooms:    store.NewRoomStore(),
		Policy:   app.SimplePolicy{},
	}
}

// connect simulates a socket: binds a connection and, when uid is set, an
// authenticated identity.
func connect(t *testing.T, o *app.Orchestrator, sid core.SessionID, uid domain.UserID) *captureConn {
	t.Helper()
	ctx := context.Background()
	user := o.Registry.GetOrCreateUser(ctx, sid)
	if uid != "" {
		var err error
		user, err = domain.NewUser(uid, string(uid)+"@example.com")
		require.NoError(t, err)
		o.Registry.Authenticate(ctx, sid, user)
	}
	conn := &captureConn{}
	sess := core.NewMemberSession(user, conn)
	o.Registry.BindSignal(sid, sess, nil)
	return conn
}

func TestCreateRoomRequiresAuthentication(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	connect(t, o, "sid-anon", "")

	_, _, err := o.CreateRoom(context.Background(), "sid-anon", app.RoomSeed{})
	assert.ErrorIs(t, err, app.ErrAnonymousPresenter)
}

func TestCreateRoomGeneratesCode(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	connect(t, o, "sid-a", "alice")

	room, _, err := o.CreateRoom(context.Background(), "sid-a", app.RoomSeed{PDFURL: "https://example.com/deck.pdf"})
	require.NoError(t, err)

	assert.Len(t, string(room.JoinCode()), domain.JoinCodeLen)
	assert.Equal(t, domain.UserID("alice"), room.PresenterID())
	assert.Equal(t, 1, room.MemberCount(), "creator joins their own room")
	assert.Equal(t, "https://example.com/deck.pdf", room.Meta().PDFURL)
}

func TestJoinUnknownRoom(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t)
	connect(t, o, "sid-b", "bob")

	_, _, err := o.Join(context.Background(), "sid-b", "NOSUCHRM")
	assert.ErrorIs(t, err, core.ErrRoomNotFound)
}

func TestRoomDeletedWhenLastMemberLeaves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	o := newOrchestrator(t)
	connect(t, o, "sid-a", "alice")

	room, _, err := o.CreateRoom(ctx, "sid-a", app.RoomSeed{})
	require.NoError(t, err)
	code := room.JoinCode()

	dep, left := o.Leave(ctx, "sid-a")
	require.True(t, left)
	assert.True(t, dep.Deleted)
	assert.Equal(t, 0, dep.Remaining)

	_, _, err = o.Join(ctx, "sid-a", code)
	assert.ErrorIs(t, err, core.ErrRoomNotFound)
}

// End-to-end room flow: create, join, question, answer, authority check.
func TestRoomScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	o := newOrchestrator(t)
	connA := connect(t, o, "sid-a", "alice")
	connB := connect(t, o, "sid-b", "bob")

	room, _, err := o.CreateRoom(ctx, "sid-a", app.RoomSeed{})
	require.NoError(t, err)

	joined, _, err := o.Join(ctx, "sid-b", room.JoinCode())
	require.NoError(t, err)
	assert.Equal(t, 2, joined.MemberCount())

	bob, err := domain.NewUser("bob", "")
	require.NoError(t, err)
	q, err := domain.NewQuestion("Why?", bob, "sid-b")
	require.NoError(t, err)
	room.PostQuestion(q)
	assert.Equal(t, 0, q.Upvotes)
	assert.Equal(t, 0, q.Downvotes)
	assert.False(t, q.Answered)

	res := room.Publish(core.Frame(`{"type":"new-question"}`))
	assert.Equal(t, 2, res.SentTo)
	assert.Len(t, connA.frames, 1)
	assert.Len(t, connB.frames, 1)

	got, err := room.ToggleAnswered(q.ID, "alice")
	require.NoError(t, err)
	assert.True(t, got.Answered)

	// bob is not the presenter; the question must stay untouched
	_, err = room.ToggleAnswered(q.ID, "bob")
	assert.ErrorIs(t, err, core.ErrNotPresenter)
	final := room.Questions()
	require.Len(t, final, 1)
	assert.True(t, final[0].Answered)
}

func TestRejoinDoesNotGrowMemberCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	o := newOrchestrator(t)
	connect(t, o, "sid-a", "alice")
	connect(t, o, "sid-b", "bob")

	room, _, err := o.CreateRoom(ctx, "sid-a", app.RoomSeed{})
	require.NoError(t, err)
	_, _, err = o.Join(ctx, "sid-b", room.JoinCode())
	require.NoError(t, err)

	// bob joins again with the same identity
	_, _, err = o.Join(ctx, "sid-b", room.JoinCode())
	require.NoError(t, err)
	assert.Equal(t, 2, room.MemberCount())
}

func TestDisconnectBroadcastsDeparture(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	o := newOrchestrator(t)
	connect(t, o, "sid-a", "alice")
	connect(t, o, "sid-b", "bob")

	room, _, err := o.CreateRoom(ctx, "sid-a", app.RoomSeed{})
	require.NoError(t, err)
	_, _, err = o.Join(ctx, "sid-b", room.JoinCode())
	require.NoError(t, err)

	dep, left := o.OnDisconnect(ctx, "sid-b")
	require.True(t, left)
	assert.False(t, dep.Deleted)
	assert.Equal(t, 1, dep.Remaining)
	require.NotNil(t, dep.User)
	assert.Equal(t, domain.UserID("bob"), dep.User.ID)

	// connection bindings are gone
	_, ok := o.Registry.GetSession("sid-b")
	assert.False(t, ok)
}

func TestBackpressureKicksSlowMember(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	o := newOrchestrator(t)
	connect(t, o, "sid-a", "alice")
	slow := connect(t, o, "sid-b", "bob")
	slow.fail = true

	room, _, err := o.CreateRoom(ctx, "sid-a", app.RoomSeed{})
	require.NoError(t, err)
	_, _, err = o.Join(ctx, "sid-b", room.JoinCode())
	require.NoError(t, err)

	res := room.Publish(core.Frame(`{"type":"transcription-update"}`))
	assert.Equal(t, 1, res.SentTo)
	require.Len(t, res.Dropped, 1)

	o.HandleDropped(ctx, room.JoinCode(), res)
	assert.Equal(t, 1, room.MemberCount(), "slow member must be kicked")
}

func TestDisconnectCancelsConnectionContext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	o := newOrchestrator(t)

	user, err := domain.NewUser("alice", "alice@example.com")
	require.NoError(t, err)
	o.Registry.GetOrCreateUser(ctx, "sid-a")
	o.Registry.Authenticate(ctx, "sid-a", user)
	connCtx, cancel := context.WithCancel(ctx)
	o.Registry.BindSignal("sid-a", core.NewMemberSession(user, &captureConn{}), cancel)

	_, _, err = o.CreateRoom(ctx, "sid-a", app.RoomSeed{})
	require.NoError(t, err)

	o.OnDisconnect(ctx, "sid-a")
	select {
	case <-connCtx.Done():
	default:
		t.Fatal("disconnect must cancel the connection context")
	}
}

func TestSwitchingRoomsReportsDeparture(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	o := newOrchestrator(t)
	connect(t, o, "sid-a", "alice")
	connect(t, o, "sid-b", "bob")
	connect(t, o, "sid-c", "carol")

	first, _, err := o.CreateRoom(ctx, "sid-a", app.RoomSeed{})
	require.NoError(t, err)
	second, _, err := o.CreateRoom(ctx, "sid-b", app.RoomSeed{})
	require.NoError(t, err)

	_, _, err = o.Join(ctx, "sid-c", first.JoinCode())
	require.NoError(t, err)

	joined, prev, err := o.Join(ctx, "sid-c", second.JoinCode())
	require.NoError(t, err)
	assert.Equal(t, second.JoinCode(), joined.JoinCode())

	require.NotNil(t, prev.User)
	assert.Equal(t, domain.UserID("carol"), prev.User.ID)
	require.NotNil(t, prev.Room)
	assert.Equal(t, first.JoinCode(), prev.Room.JoinCode())
	assert.Equal(t, 1, prev.Remaining)
	assert.False(t, prev.Deleted)
	assert.Equal(t, 1, first.MemberCount())
}

// vanishingRoomStore empties and deletes the room right after a lookup,
// standing in for a disconnect that lands between a joiner's lookup and
// its membership add.
type vanishingRoomStore struct {
	core.RoomStore
	code    domain.JoinCode
	lastSID core.SessionID
	armed   bool
}

func (s *vanishingRoomStore) Get(code domain.JoinCode) (core.RoomService, bool) {
	room, ok := s.RoomStore.Get(code)
	if ok && s.armed && code == s.code {
		s.armed = false
		room.RemoveMember(s.lastSID)
		s.RoomStore.DeleteIfEmpty(code)
	}
	return room, ok
}

func TestJoinLosesRaceWithRoomDeletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	o := newOrchestrator(t)
	connect(t, o, "sid-a", "alice")
	connect(t, o, "sid-b", "bob")

	room, _, err := o.CreateRoom(ctx, "sid-a", app.RoomSeed{})
	require.NoError(t, err)
	o.Rooms = &vanishingRoomStore{
		RoomStore: o.Rooms,
		code:      room.JoinCode(),
		lastSID:   "sid-a",
		armed:     true,
	}

	_, _, err = o.Join(ctx, "sid-b", room.JoinCode())
	assert.ErrorIs(t, err, core.ErrRoomNotFound)
	assert.Equal(t, 0, room.MemberCount(), "a failed join must not leave a member behind")
	_, _, ok := o.Registry.RoomOf("sid-b")
	assert.False(t, ok)
}
