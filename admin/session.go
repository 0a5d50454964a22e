package admin

import "sync"

// Session holds the token and user of the current login.
type Session interface {
	Token() string
	User() *User
	Set(token string, u *User)
	Clear()
}

// MemorySession is a Session kept in process memory. It is safe for
// concurrent use.
type MemorySession struct {
	mu    sync.RWMutex
	token string
	user  *User
}

func (s *MemorySession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the logged in user, or nil.
func (s *MemorySession) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *MemorySession) Set(token string, u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if u != nil {
		cp := *u
		u = &cp
	}
	s.user = u
}

func (s *MemorySession) Clear() {
	s.Set("", nil)
}

// IsLoggedIn reports whether s has both a token and a user.
func IsLoggedIn(s Session) bool {
	return s.Token() != "" && s.User() != nil
}

// IsSuperAdmin reports whether the user of s is a super admin.
func IsSuperAdmin(s Session) bool {
	u := s.User()
	return u != nil && u.Role == RoleSuperAdmin
}
