package core

import (
	"sync"

	"github.com/promptdeck/promptdeck/internal/domain"
)

// memberSession implements MemberSession by pairing identity + transport.
// The lock guards the identity fields only; the connection is immutable
// for the session's lifetime.
type memberSession struct {
	mu        sync.RWMutex
	user      *domain.User
	presenter bool
	conn      SignalConnection
}

func NewMemberSession(user *domain.User, conn SignalConnection) MemberSession {
	return &memberSession{user: user, conn: conn}
}

func (m *memberSession) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *memberSession) Presenter() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.presenter
}

func (m *memberSession) SetUser(u *domain.User) {
	m.mu.Lock()
	m.user = u
	m.mu.Unlock()
}

func (m *memberSession) SetPresenter(p bool) {
	m.mu.Lock()
	m.presenter = p
	m.mu.Unlock()
}

func (m *memberSession) Signal() SignalConnection { return m.conn }
