package planner

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSession is returned when no job configuration session is open.
var ErrNoSession = errors.New("planner: no configuration session open")

// OpenFunc builds the planner for a library file.
type OpenFunc func(ctx context.Context, fileID int) (*Planner, error)

// Session holds the single job configuration session of the service.
// Opening a new one closes the previous planner.
type Session struct {
	open OpenFunc

	mu      sync.Mutex
	current *Planner
}

func NewSession(open OpenFunc) *Session {
	return &Session{open: open}
}

// Open starts a session for fileID.
func (s *Session) Open(ctx context.Context, fileID int) (*Planner, error) {
	p, err := s.open(ctx, fileID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	prev := s.current
	s.current = p
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return p, nil
}

// Current returns the open planner.
func (s *Session) Current() (*Planner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, ErrNoSession
	}
	return s.current, nil
}

// Close ends the open session, if any.
func (s *Session) Close() {
	s.mu.Lock()
	p := s.current
	s.current = nil
	s.mu.Unlock()
	if p != nil {
		p.Close()
	}
}
