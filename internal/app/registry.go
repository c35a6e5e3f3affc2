package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

type sessionEntry struct {
	RoomCode domain.JoinCode
	Session  core.MemberSession
	Cancel   context.CancelFunc
}

// Registry is the connection-level session store: sid -> transport session
// and sid -> identity. Durable per-user metadata goes through the
// core.SessionStore seam.
type Registry struct {
	mu      sync.RWMutex
	entries map[core.SessionID]*sessionEntry
	users   map[core.SessionID]*domain.User

	sessions core.SessionStore
}

func NewRegistry(sessions core.SessionStore) *Registry {
	return &Registry{
		entries:  make(map[core.SessionID]*sessionEntry),
		users:    make(map[core.SessionID]*domain.User),
		sessions: sessions,
	}
}

// GetOrCreateUser returns the identity bound to a connection, minting an
// anonymous one on first sight.
func (r *Registry) GetOrCreateUser(ctx context.Context, sid core.SessionID) *domain.User {
	r.mu.Lock()
	if u, ok := r.users[sid]; ok {
		r.mu.Unlock()
		return u
	}
	u := domain.NewAnonymousUser()
	r.users[sid] = u
	r.mu.Unlock()

	r.persistSession(ctx, u)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("user", string(u.ID)).Msg("created anonymous user")
	return u
}

// Authenticate rebinds the connection to a verified identity.
func (r *Registry) Authenticate(ctx context.Context, sid core.SessionID, u *domain.User) {
	r.mu.Lock()
	r.users[sid] = u
	r.mu.Unlock()

	r.persistSession(ctx, u)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("user", string(u.ID)).Bool("anonymous", u.Anonymous).Msg("authenticated")
}

func (r *Registry) persistSession(ctx context.Context, u *domain.User) {
	sess, ok, err := r.sessions.Get(ctx, u.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("session load failed")
		return
	}
	if !ok {
		sess = domain.NewSession(u)
	}
	sess.LastSeen = time.Now().UTC()
	if err := r.sessions.Put(ctx, sess); err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("session save failed")
	}
}

// Touch refreshes LastSeen for a connected user.
func (r *Registry) Touch(ctx context.Context, sid core.SessionID) {
	r.mu.RLock()
	u, ok := r.users[sid]
	r.mu.RUnlock()
	if ok {
		r.persistSession(ctx, u)
	}
}

// RecordRoom adds a join code to the user's session history.
func (r *Registry) RecordRoom(ctx context.Context, sid core.SessionID, code domain.JoinCode) {
	r.mu.RLock()
	u, ok := r.users[sid]
	r.mu.RUnlock()
	if !ok {
		return
	}
	sess, found, err := r.sessions.Get(ctx, u.ID)
	if err != nil || !found {
		return
	}
	sess.AddRoom(code)
	sess.LastSeen = time.Now().UTC()
	if err := r.sessions.Put(ctx, sess); err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("session save failed")
	}
}

func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind drops the connection entry and cancels its context so every
// goroutine scoped to the connection (pumps, simulator) winds down with it.
func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sid]; ok && e.Cancel != nil {
		e.Cancel()
	}
	delete(r.entries, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.JoinCode, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[sid]
	if !ok || entry.RoomCode == "" {
		return "", nil, false
	}
	return entry.RoomCode, entry.Session, true
}

func (r *Registry) UpdateRoom(sid core.SessionID, code domain.JoinCode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[sid]
	if !ok {
		return false
	}
	entry.RoomCode = code
	return true
}

func (r *Registry) RemoveRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[sid]; ok {
		entry.RoomCode = ""
	}
}

type RegSnap struct {
	SID     core.SessionID
	Session core.MemberSession
}

func (r *Registry) MembersOfRoom(code domain.JoinCode) []RegSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegSnap, 0)
	for sid, e := range r.entries {
		if e.RoomCode == code {
			out = append(out, RegSnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

// ActiveUserIDs reports identities with a live connection; the sweeper must
// not reap their sessions however stale the stored LastSeen.
func (r *Registry) ActiveUserIDs() map[domain.UserID]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.UserID]struct{}, len(r.users))
	for _, u := range r.users {
		out[u.ID] = struct{}{}
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.entries[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}

// DropUser forgets the connection-level identity binding on disconnect.
func (r *Registry) DropUser(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, sid)
}
