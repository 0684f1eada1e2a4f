package session

import (
	"errors"

	"sqlite-viewer/internal/parse"
	"sqlite-viewer/internal/reader"
	"sqlite-viewer/internal/sqlite"
	"sqlite-viewer/internal/watcher"
)

// EventKind discriminates session-level events.
type EventKind int

const (
	// EventReloadStarted marks the beginning of a reload; cache
	// invalidation is strictly ordered before it is emitted.
	EventReloadStarted EventKind = iota
	// EventReloadFinished marks a completed reload generation.
	EventReloadFinished
	// EventWatchState reports a watcher state change.
	EventWatchState
	// EventParse wraps a parse pipeline event from a reload generation.
	EventParse
	// EventFailed reports a session-level failure with a classification
	// the UI can use to decide between retry and re-open.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventReloadStarted:
		return "reload_started"
	case EventReloadFinished:
		return "reload_finished"
	case EventWatchState:
		return "watch_state_changed"
	case EventParse:
		return "parse"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one element of the session's notification stream.
type Event struct {
	Kind EventKind

	WatchState watcher.State // EventWatchState
	Parse      parse.Event   // EventParse

	// EventFailed payload.
	Err         error
	ErrorKind   string
	Message     string
	Recoverable bool
}

// failedEvent builds an EventFailed with its classification filled in.
func failedEvent(err error) Event {
	kind, recoverable := ClassifyError(err)
	return Event{
		Kind:        EventFailed,
		Err:         err,
		ErrorKind:   kind,
		Message:     err.Error(),
		Recoverable: recoverable,
	}
}

// ClassifyError maps an engine error to the stable kind string and
// recoverability flag exposed to the UI layer. Recoverable means the user
// can retry (or re-open the same path) without picking a different file.
func ClassifyError(err error) (kind string, recoverable bool) {
	var corrupt *sqlite.CorruptPageError
	switch {
	case errors.Is(err, sqlite.ErrInvalidHeader):
		return "invalid_header", false
	case errors.Is(err, sqlite.ErrUnsupportedVersion):
		return "unsupported_version", false
	case errors.Is(err, ErrHeaderChanged):
		return "header_changed", true
	case errors.Is(err, reader.ErrFileGone):
		return "file_gone", true
	case errors.Is(err, reader.ErrOutOfRange):
		return "out_of_range", true
	case errors.Is(err, parse.ErrCancelled):
		return "cancelled", true
	case errors.As(err, &corrupt):
		return "corrupt_page", true
	case errors.Is(err, ErrClosed):
		return "session_closed", false
	default:
		return "io", true
	}
}
