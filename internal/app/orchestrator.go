package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

var (
	ErrAnonymousPresenter = errors.New("Authentication required to create a room")
	ErrNoSession          = errors.New("no session bound for connection")
	ErrCodesExhausted     = errors.New("could not allocate a join code")
)

const maxCodeAttempts = 5

// Orchestrator coordinates the registry and the room store. Handlers call
// it; it never talks to transports beyond what core fan-out does.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomStore
	Policy   Policy
	CodeLen  int
}

// RoomSeed carries the presentation context for create-room-with-pdf;
// zero value for a bare create-room.
type RoomSeed struct {
	PDFURL    string
	Summary   string
	PageTexts []string
}

// CreateRoom allocates a join code, registers the room with the caller as
// presenter and joins them. Collisions retry with a fresh code, they never
// overwrite a live room. The returned Departure describes the room the
// caller left to get here, so the transport can announce it.
func (o *Orchestrator) CreateRoom(ctx context.Context, sid core.SessionID, seed RoomSeed) (core.RoomService, Departure, error) {
	user := o.Registry.GetOrCreateUser(ctx, sid)
	if user.Anonymous {
		return nil, Departure{}, ErrAnonymousPresenter
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, Departure{}, ErrNoSession
	}

	var room core.RoomService
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			return nil, Departure{}, ErrCodesExhausted
		}
		meta := &domain.Room{
			JoinCode:    domain.JoinCode(newJoinCode(o.codeLen())),
			PresenterID: user.ID,
			PDFURL:      seed.PDFURL,
			Summary:     seed.Summary,
			PageTexts:   seed.PageTexts,
		}
		created, err := o.Rooms.Create(meta)
		if errors.Is(err, core.ErrRoomExists) {
			log.Warn().Str("module", "app.orchestrator").Str("code", string(meta.JoinCode)).
				Msg("join code collision, retrying")
			continue
		}
		if err != nil {
			return nil, Departure{}, err
		}
		room = created
		break
	}

	prev, _ := o.leaveCurrent(ctx, sid)
	sess.SetPresenter(true)
	room.AddMember(sid, sess)
	o.Registry.UpdateRoom(sid, room.JoinCode())
	o.Registry.RecordRoom(ctx, sid, room.JoinCode())
	return room, prev, nil
}

// Join adds the caller to an existing room, leaving any previous one first.
// The previous room's Departure comes back alongside the joined room so the
// transport can tell its survivors.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, code domain.JoinCode) (core.RoomService, Departure, error) {
	room, ok := o.Rooms.Get(code)
	if !ok {
		return nil, Departure{}, core.ErrRoomNotFound
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, Departure{}, ErrNoSession
	}

	prev, _ := o.leaveCurrent(ctx, sid)
	sess.SetPresenter(sess.User().ID == room.PresenterID())
	room.AddMember(sid, sess)
	// The room may have emptied and been deleted between the lookup and the
	// add. Membership in a deleted room is membership in nothing, so back
	// out and report the room gone.
	if _, live := o.Rooms.Get(code); !live {
		room.RemoveMember(sid)
		return nil, prev, core.ErrRoomNotFound
	}
	o.Registry.UpdateRoom(sid, code)
	o.Registry.RecordRoom(ctx, sid, code)
	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).
		Str("code", string(code)).Msg("joined room")
	return room, prev, nil
}

// Departure is what the transport needs to broadcast user-left (or nothing,
// when the room died with its last member).
type Departure struct {
	Room      core.RoomService
	User      *domain.User
	Remaining int
	Deleted   bool
}

// Leave removes the caller from their current room. The room is deleted the
// moment its member set becomes empty.
func (o *Orchestrator) Leave(ctx context.Context, sid core.SessionID) (Departure, bool) {
	return o.leaveCurrent(ctx, sid)
}

func (o *Orchestrator) leaveCurrent(ctx context.Context, sid core.SessionID) (Departure, bool) {
	code, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return Departure{}, false
	}
	room, ok := o.Rooms.Get(code)
	o.Registry.RemoveRoom(sid)
	if !ok {
		return Departure{}, false
	}
	user, remaining := room.RemoveMember(sid)
	dep := Departure{Room: room, User: user, Remaining: remaining}
	if remaining == 0 {
		dep.Deleted = o.Rooms.DeleteIfEmpty(code)
	}
	o.Registry.Touch(ctx, sid)
	return dep, user != nil
}

// OnDisconnect tears down everything bound to a closing connection.
func (o *Orchestrator) OnDisconnect(ctx context.Context, sid core.SessionID) (Departure, bool) {
	dep, left := o.leaveCurrent(ctx, sid)
	o.Registry.Unbind(sid)
	o.Registry.DropUser(sid)
	return dep, left
}

// Room resolves a claimed join code. The room must exist; the caller need
// not be in it for read-only events.
func (o *Orchestrator) Room(code domain.JoinCode) (core.RoomService, error) {
	room, ok := o.Rooms.Get(code)
	if !ok {
		return nil, core.ErrRoomNotFound
	}
	return room, nil
}

// HandleDropped applies the backpressure policy to slow receivers after a
// fan-out.
func (o *Orchestrator) HandleDropped(ctx context.Context, code domain.JoinCode, res core.PublishResult) {
	if o.Policy == nil || len(res.Dropped) == 0 {
		return
	}
	room, ok := o.Rooms.Get(code)
	if !ok {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			for _, snap := range o.Registry.MembersOfRoom(code) {
				if snap.Session == slow {
					o.Leave(ctx, snap.SID)
					o.Registry.Cancel(snap.SID)
				}
			}
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

func (o *Orchestrator) codeLen() int {
	if o.CodeLen > 0 {
		return o.CodeLen
	}
	return domain.JoinCodeLen
}
