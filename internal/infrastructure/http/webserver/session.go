// Package webserver provides session management for the web frontend
package webserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/resepqa/web/internal/domain/chat"
	"github.com/resepqa/web/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Session is one browser's conversation slot
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	Chat      *chat.State
}

// SessionStore manages browser sessions in memory. Sessions expire after
// MaxAge without use and are swept in the background.
type SessionStore struct {
	sessions   map[string]*Session
	mu         sync.RWMutex
	cookieName string
	maxAge     time.Duration
	interval   time.Duration
	secure     bool
	logger     *zap.Logger
	now        func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewSessionStore creates a new session store. Call Start to begin the
// expiry sweep.
func NewSessionStore(cfg *config.Config, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*Session),
		cookieName: cfg.Session.CookieName,
		maxAge:     cfg.Session.MaxAge,
		interval:   cfg.Session.CleanupInterval,
		secure:     cfg.IsProduction(),
		logger:     logger.Named("sessions"),
		now:        time.Now,
	}
}

// Start launches the background sweep of expired sessions
func (s *SessionStore) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.cleanupExpired(s.stop, s.done)
}

// Stop ends the sweep and waits for it to exit
func (s *SessionStore) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Get retrieves the live session named by the request cookie
func (s *SessionStore) Get(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[cookie.Value]
	if !exists {
		return nil, http.ErrNoCookie
	}

	now := s.now()
	if now.After(session.ExpiresAt) {
		delete(s.sessions, cookie.Value)
		return nil, http.ErrNoCookie
	}

	session.ExpiresAt = now.Add(s.maxAge)
	return session, nil
}

// New creates a new idle session
func (s *SessionStore) New() *Session {
	now := s.now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.maxAge),
		Chat:      &chat.State{},
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Load returns the request's session, creating one and setting its cookie
// when the request has none or it has expired.
func (s *SessionStore) Load(w http.ResponseWriter, r *http.Request) *Session {
	if session, err := s.Get(r); err == nil {
		return session
	}

	session := s.New()
	s.Save(w, session)
	return session
}

// Save sets the session cookie
func (s *SessionStore) Save(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.maxAge.Seconds()),
	})
}

// Delete removes a session
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Count returns the number of sessions held
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) cleanupExpired(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				s.logger.Debug("Cleaned up expired sessions", zap.Int("count", n))
			}
		}
	}
}

// sweep drops every expired session and returns how many went
func (s *SessionStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
