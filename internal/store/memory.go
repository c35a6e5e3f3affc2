// Package store provides the in-memory (default) and Redis backends behind
// the core store seams.
package store

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/core"
	"github.com/promptdeck/promptdeck/internal/domain"
)

// RoomStoreMem is the process-wide join-code -> room mapping.
type RoomStoreMem struct {
	mu    sync.RWMutex
	rooms map[domain.JoinCode]core.RoomService
}

func NewRoomStore() *RoomStoreMem {
	return &RoomStoreMem{rooms: make(map[domain.JoinCode]core.RoomService)}
}

// Create registers a new room. A code collision is an error, never a silent
// overwrite of a live room.
func (s *RoomStoreMem) Create(meta *domain.Room) (core.RoomService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[meta.JoinCode]; ok {
		return nil, core.ErrRoomExists
	}
	room := core.NewRoomService(meta)
	s.rooms[meta.JoinCode] = room
	log.Info().Str("module", "store.rooms").Str("code", string(meta.JoinCode)).
		Str("presenter", string(meta.PresenterID)).Msg("room created")
	return room, nil
}

func (s *RoomStoreMem) Get(code domain.JoinCode) (core.RoomService, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStoreMem) DeleteIfEmpty(code domain.JoinCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok || room.MemberCount() > 0 {
		return false
	}
	delete(s.rooms, code)
	log.Info().Str("module", "store.rooms").Str("code", string(code)).Msg("empty room deleted")
	return true
}

func (s *RoomStoreMem) List() []core.RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(s.rooms))
	for code, r := range s.rooms {
		out = append(out, core.RoomInfo{JoinCode: code, MemberCount: r.MemberCount()})
	}
	return out
}

// SessionStoreMem keeps sessions in process memory.
type SessionStoreMem struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]*domain.Session
}

func NewSessionStore() *SessionStoreMem {
	return &SessionStoreMem{sessions: make(map[domain.UserID]*domain.Session)}
}

func (s *SessionStoreMem) Get(_ context.Context, uid domain.UserID) (*domain.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[uid]
	if !ok {
		return nil, false, nil
	}
	cp := *sess
	cp.Rooms = append([]domain.JoinCode(nil), sess.Rooms...)
	return &cp, true, nil
}

func (s *SessionStoreMem) Put(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	cp.Rooms = append([]domain.JoinCode(nil), sess.Rooms...)
	s.sessions[sess.UserID] = &cp
	return nil
}

func (s *SessionStoreMem) Delete(_ context.Context, uid domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, uid)
	return nil
}

func (s *SessionStoreMem) Iterate(_ context.Context, fn func(*domain.Session) bool) error {
	s.mu.RLock()
	snapshot := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		snapshot = append(snapshot, &cp)
	}
	s.mu.RUnlock()
	for _, sess := range snapshot {
		if !fn(sess) {
			return nil
		}
	}
	return nil
}
