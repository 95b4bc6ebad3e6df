package bot

import (
	"sync"
	"time"
)

// Flow names a multi-step conversation
type Flow string

const (
	flowRegistration Flow = "registration"
	flowGuestCard    Flow = "guest_card"
	flowAddAdmin     Flow = "add_admin"
)

// Step is the input a session waits for
type Step int

const (
	stepDate Step = iota + 1
	stepTime
	stepActivity
	stepGroup
	stepProductID
	stepAdminID
)

// Session tracks the state of a multi-step conversation
type Session struct {
	UserID int64
	Flow   Flow
	Step   Step

	// registration
	Day      time.Time
	Time     string
	Activity string

	// guest card and admin flows
	TargetUserID int64
	Group        string

	ExpiresAt time.Time
}

// SessionStore keeps one session per user. Sessions expire after ttl
// without input.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		sessions: make(map[int64]Session),
		ttl:      ttl,
		now:      now,
	}
}

// Get returns a copy of the live session of the user
func (s *SessionStore) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if s.ttl > 0 && !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, userID)
		return Session{}, false
	}
	return sess, true
}

// Put stores the session and extends its lifetime
func (s *SessionStore) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.ExpiresAt = s.now().Add(s.ttl)
	s.sessions[sess.UserID] = sess
}

func (s *SessionStore) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// userLocks serializes the updates of one user. Webhook updates arrive on
// separate goroutines and a session step must see the previous step's write.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

// lock blocks until the user's previous update is handled and returns the
// matching unlock
func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*userLock)
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
