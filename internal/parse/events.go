package parse

import (
	"errors"
	"time"

	"sqlite-viewer/internal/sqlite"
)

// ErrCancelled is reported through a Failed event when a run is cancelled at
// a batch boundary. It is user-initiated and not an error condition for
// reporting purposes.
var ErrCancelled = errors.New("parse cancelled")

// EventKind discriminates parse pipeline events.
type EventKind int

const (
	// EventProgress reports batch completion progress.
	EventProgress EventKind = iota
	// EventPageReady carries one decoded page summary.
	EventPageReady
	// EventWarning reports a non-fatal per-page anomaly.
	EventWarning
	// EventFailed reports a fatal pipeline error; it is the last event
	// before the stream closes.
	EventFailed
	// EventDone marks a completed run; it is the last event before the
	// stream closes.
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventPageReady:
		return "page_ready"
	case EventWarning:
		return "warning"
	case EventFailed:
		return "failed"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress is the transient progress snapshot emitted once per batch.
type Progress struct {
	Done        uint32
	Total       uint32
	Elapsed     time.Duration
	Cancellable bool
}

// Event is one element of the pipeline's event stream. The fields populated
// depend on Kind.
type Event struct {
	Kind EventKind

	Progress   Progress     // EventProgress
	Page       *sqlite.Page // EventPageReady
	PageNumber uint32       // EventWarning
	Text       string       // EventWarning
	Err        error        // EventFailed
}
