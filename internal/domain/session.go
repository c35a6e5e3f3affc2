package domain

import "time"

// Session is per-user metadata, kept across reconnects for the lifetime of
// the process (or until swept as idle).
type Session struct {
	UserID    UserID     `json:"userId"`
	Email     string     `json:"email,omitempty"`
	Anonymous bool       `json:"anonymous"`
	CreatedAt time.Time  `json:"createdAt"`
	LastSeen  time.Time  `json:"lastSeen"`
	Rooms     []JoinCode `json:"rooms,omitempty"`
}

func NewSession(u *User) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:    u.ID,
		Email:     u.Email,
		Anonymous: u.Anonymous,
		CreatedAt: now,
		LastSeen:  now,
	}
}

// AddRoom records a joined room, idempotently.
func (s *Session) AddRoom(code JoinCode) {
	for _, c := range s.Rooms {
		if c == code {
			return
		}
	}
	s.Rooms = append(s.Rooms, code)
}

func (s *Session) RemoveRoom(code JoinCode) {
	for i, c := range s.Rooms {
		if c == code {
			s.Rooms = append(s.Rooms[:i], s.Rooms[i+1:]...)
			return
		}
	}
}
