// Package chat tracks the lifecycle of the question form for one browser
// session: idle, loading, then either an error or a response.
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/resepqa/web/internal/domain/answer"
)

// Phase is the state of the question form
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseError    Phase = "error"
	PhaseResponse Phase = "response"
)

// State holds the single current-response slot of a session.
// The zero value is idle and ready to use.
type State struct {
	mu        sync.Mutex
	phase     Phase
	question  string
	err       string
	response  *answer.NormalizedAnswer
	updatedAt time.Time
}

// View is an immutable snapshot of State for rendering
type View struct {
	Phase     Phase
	Question  string
	Error     string
	Response  *answer.NormalizedAnswer
	UpdatedAt time.Time
}

// Loading reports whether a request is in flight
func (v View) Loading() bool {
	return v.Phase == PhaseLoading
}

// Begin starts a submission. It returns false and changes nothing when the
// trimmed question is empty or another submission is still in flight.
func (s *State) Begin(question string) bool {
	question = strings.TrimSpace(question)
	if question == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseLoading {
		return false
	}

	s.phase = PhaseLoading
	s.question = question
	s.err = ""
	s.response = nil
	s.updatedAt = time.Now()
	return true
}

// Fail ends the in-flight submission with a user-facing error message
func (s *State) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhaseError
	s.err = message
	s.response = nil
	s.updatedAt = time.Now()
}

// Succeed ends the in-flight submission with a response, replacing any
// previous one.
func (s *State) Succeed(resp answer.NormalizedAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhaseResponse
	s.err = ""
	s.response = &resp
	s.updatedAt = time.Now()
}

// Snapshot returns the current state
func (s *State) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	phase := s.phase
	if phase == "" {
		phase = PhaseIdle
	}

	return View{
		Phase:     phase,
		Question:  s.question,
		Error:     s.err,
		Response:  s.response,
		UpdatedAt: s.updatedAt,
	}
}
