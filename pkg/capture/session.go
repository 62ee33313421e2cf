package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Readiness is the lifecycle of a capture session.
type Readiness int

const (
	NotReady Readiness = iota // stream granted, metadata pending
	Ready                     // metadata loaded
	Active                    // first frame submitted
	SessionStopped
)

func (r Readiness) String() string {
	switch r {
	case NotReady:
		return "not_ready"
	case Ready:
		return "ready"
	case Active:
		return "active"
	case SessionStopped:
		return "stopped"
	default:
		return fmt.Sprintf("readiness(%d)", int(r))
	}
}

// Session owns a granted stream for the life of gesture control.
type Session struct {
	ID      string
	Started time.Time

	stream Stream

	mu        sync.Mutex
	readiness Readiness

	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps a freshly granted stream.
func NewSession(stream Stream) *Session {
	return &Session{
		ID:      uuid.NewString(),
		Started: time.Now(),
		stream:  stream,
	}
}

// Stream returns the underlying stream.
func (s *Session) Stream() Stream { return s.stream }

// Readiness returns the current readiness.
func (s *Session) Readiness() Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readiness
}

// Advance moves the session to the next readiness. Forward moves must not
// skip a state; SessionStopped is reachable from anywhere and is final.
func (s *Session) Advance(to Readiness) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.readiness
	switch {
	case from == SessionStopped:
		return fmt.Errorf("%w: session %s already stopped", ErrInvalidTransition, s.ID)
	case to == SessionStopped, to == from+1:
		s.readiness = to
		return nil
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
}

// Close stops the session and releases the stream. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.readiness = SessionStopped
	s.mu.Unlock()

	s.closeOnce.Do(func() { s.closeErr = s.stream.Close() })
	return s.closeErr
}
