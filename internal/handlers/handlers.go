package handlers

import (
	"sync/atomic"
	"time"

	"sqlite-viewer/internal/session"
)

type Handlers struct {
	session   *session.Session
	startTime time.Time

	// parseDone flips once the initial background parse finishes;
	// readiness reports false until then.
	parseDone atomic.Bool
}

func New(sess *session.Session) *Handlers {
	return &Handlers{
		session:   sess,
		startTime: time.Now(),
	}
}

// SetParseComplete marks the initial full parse as finished.
func (h *Handlers) SetParseComplete() {
	h.parseDone.Store(true)
}
