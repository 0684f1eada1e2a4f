// Package session ties the reader, decoder, parse pipeline, cache and
// watcher together into one handle for a single open database file. All
// decode work for a session is serialized: a full parse, a reload and a
// lazy single-page decode never run concurrently with each other.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"sqlite-viewer/internal/cache"
	"sqlite-viewer/internal/logging"
	"sqlite-viewer/internal/parse"
	"sqlite-viewer/internal/reader"
	"sqlite-viewer/internal/sqlite"
	"sqlite-viewer/internal/watcher"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrParseRunning is returned by StartFullParse when a run is
	// already in flight for this session.
	ErrParseRunning = errors.New("a parse is already running")
	// ErrHeaderChanged is returned by Refresh when the file on disk no
	// longer has the same structural header (page size, text encoding or
	// reserved space). The session must be re-opened.
	ErrHeaderChanged = errors.New("database header changed, re-open required")
)

const eventBuffer = 64

// Options configures a session. The zero value is usable; Open fills in
// defaults for zero fields.
type Options struct {
	CacheSize int
	BatchSize int
	Reader    reader.Config
	Watch     watcher.Config
}

// Session is an open database file plus the state accumulated while
// browsing it. Create with Open, release with Close.
type Session struct {
	ID   uuid.UUID
	path string
	opts Options

	reader *reader.Reader
	cache  *cache.Cache
	watch  *watcher.Watcher

	// mu guards header, closed and the parse bookkeeping below.
	mu          sync.Mutex
	header      *sqlite.Header
	closed      bool
	parseActive bool
	parseCancel context.CancelFunc
	parseDone   chan struct{}

	// workMu serializes reloads and lazy single-page decodes.
	workMu sync.Mutex

	// closeCtx is cancelled on Close so in-flight reloads stop at the
	// next batch boundary instead of blocking shutdown.
	closeCtx    context.Context
	closeCancel context.CancelFunc

	events chan Event
}

// Open validates the first 100 bytes of the file at path and returns a
// session for it. No pages are decoded and no events are emitted; a file
// that is too short or not a database fails here synchronously.
func Open(path string, opts Options) (*Session, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = cache.DefaultMaxEntries
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = parse.DefaultBatchSize
	}

	r, err := reader.Open(path, opts.Reader)
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadAt(0, sqlite.HeaderSize)
	if err != nil {
		r.Close()
		if errors.Is(err, reader.ErrOutOfRange) {
			return nil, fmt.Errorf("%w: file shorter than %d bytes", sqlite.ErrInvalidHeader, sqlite.HeaderSize)
		}
		return nil, err
	}
	h, err := sqlite.ParseHeader(raw)
	if err != nil {
		r.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          uuid.New(),
		path:        r.Path(),
		opts:        opts,
		reader:      r,
		cache:       cache.New(opts.CacheSize),
		header:      h,
		closeCtx:    ctx,
		closeCancel: cancel,
		events:      make(chan Event, eventBuffer),
	}
	s.watch = watcher.New(r.Path(), opts.Watch, s.watchReload, s.watchNotify)
	logging.Info("session %s opened %s (page size %d, %d pages in header)",
		s.ID, s.path, h.PageSize, h.PageCount)
	return s, nil
}

// Path returns the absolute path of the open file.
func (s *Session) Path() string { return s.path }

// Header returns the most recently parsed database header.
func (s *Session) Header() *sqlite.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header
}

// PageCount returns the number of pages derived from the header and the
// current file size.
func (s *Session) PageCount() uint32 {
	s.mu.Lock()
	h := s.header
	s.mu.Unlock()
	return h.TotalPages(s.reader.Size())
}

// CacheStats returns a snapshot of the page cache counters.
func (s *Session) CacheStats() cache.Stats { return s.cache.Stats() }

// Events returns the session notification stream. Events are dropped,
// not blocked on, when the consumer falls behind.
func (s *Session) Events() <-chan Event { return s.events }

// WatchState returns the current watcher state.
func (s *Session) WatchState() watcher.State { return s.watch.State() }

// StartWatch begins watching the file for external modification. A
// watcher that was stopped or disabled itself is replaced with a fresh
// one, so watching can be toggled over the session's lifetime.
func (s *Session) StartWatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.watch.Start(); err == nil {
		return nil
	}
	switch s.watch.State() {
	case watcher.StateIdle, watcher.StateDisabled:
		s.watch = watcher.New(s.path, s.opts.Watch, s.watchReload, s.watchNotify)
		return s.watch.Start()
	default:
		return fmt.Errorf("watch already active for %s", s.path)
	}
}

// StopWatch stops the watcher. Safe to call repeatedly.
func (s *Session) StopWatch() { s.watch.Stop() }

// StartFullParse decodes every page of the file in the background and
// returns the event stream for the run. Only one parse per session may be
// in flight; pages land in the cache as batches complete.
func (s *Session) StartFullParse(ctx context.Context) (<-chan parse.Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.parseActive {
		s.mu.Unlock()
		return nil, ErrParseRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.parseActive = true
	s.parseCancel = cancel
	s.parseDone = done
	p := parse.New(s.reader, s.header, s.cache, s.opts.BatchSize)
	s.mu.Unlock()

	out := make(chan parse.Event, eventBuffer)
	go func() {
		defer cancel()
		// workMu keeps the run from overlapping a reload or an inline
		// decode; the pipeline starts once any reload in flight is done.
		s.workMu.Lock()
		for ev := range p.Run(runCtx) {
			select {
			case out <- ev:
			case <-runCtx.Done():
				// Consumer gone and run cancelled; drain and drop.
			}
		}
		s.workMu.Unlock()
		s.mu.Lock()
		s.parseActive = false
		s.parseCancel = nil
		s.parseDone = nil
		s.mu.Unlock()
		// Closed last so a drained stream implies the bookkeeping above
		// is already visible.
		close(out)
		close(done)
	}()
	return out, nil
}

// CancelParse cancels an in-flight full parse, if any. Batches that
// already completed stay cached.
func (s *Session) CancelParse() {
	s.mu.Lock()
	cancel := s.parseCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Page returns page n, decoding it inline when it is not cached and no
// full parse is running. During a parse a cache miss returns (nil, nil)
// since the running parse will deliver the page shortly.
func (s *Session) Page(n uint32) (*sqlite.Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	h := s.header
	active := s.parseActive
	s.mu.Unlock()

	if n < 1 || n > h.TotalPages(s.reader.Size()) {
		return nil, fmt.Errorf("%w: page %d", reader.ErrOutOfRange, n)
	}
	if page, ok := s.cache.Get(n); ok {
		return page, nil
	}
	if active {
		return nil, nil
	}

	s.workMu.Lock()
	defer s.workMu.Unlock()
	// A reload may have populated the cache while we waited.
	if page, ok := s.cache.Get(n); ok {
		return page, nil
	}
	raw, err := s.reader.ReadAt(h.PageOffset(n), int64(h.PageSize))
	if err != nil {
		return nil, err
	}
	page, err := sqlite.DecodePage(n, raw, h, sqlite.DecodeHintNone)
	if err != nil {
		return nil, err
	}
	s.cache.Put(n, page)
	return page, nil
}

// Refresh re-reads the file after an external change: it cancels any
// running parse, waits for it to stop, revalidates the header, atomically
// invalidates the cache and re-parses every page. Parse events of the new
// generation are forwarded on the session event stream. A structural
// header change aborts with ErrHeaderChanged.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	cancel := s.parseCancel
	done := s.parseDone
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	s.workMu.Lock()
	defer s.workMu.Unlock()

	s.emit(Event{Kind: EventReloadStarted})

	if err := s.reader.Refresh(); err != nil {
		s.emit(failedEvent(err))
		return err
	}
	raw, err := s.reader.ReadAt(0, sqlite.HeaderSize)
	if err != nil {
		if errors.Is(err, reader.ErrOutOfRange) {
			err = fmt.Errorf("%w: file shorter than %d bytes", sqlite.ErrInvalidHeader, sqlite.HeaderSize)
		}
		s.emit(failedEvent(err))
		return err
	}
	h, err := sqlite.ParseHeader(raw)
	if err != nil {
		s.emit(failedEvent(err))
		return err
	}
	s.mu.Lock()
	same := s.header.SameFile(h)
	if same {
		s.header = h
	}
	s.mu.Unlock()
	if !same {
		s.emit(failedEvent(ErrHeaderChanged))
		return ErrHeaderChanged
	}

	// Invalidation happens before any page of the new generation is
	// published, so consumers never observe a mix of generations.
	s.cache.InvalidateAll()

	p := parse.New(s.reader, h, s.cache, s.opts.BatchSize)
	var failure error
	for ev := range p.Run(ctx) {
		s.emit(Event{Kind: EventParse, Parse: ev})
		if ev.Kind == parse.EventFailed {
			failure = ev.Err
		}
	}
	if failure != nil {
		s.emit(failedEvent(failure))
		return failure
	}
	s.emit(Event{Kind: EventReloadFinished})
	logging.Info("session %s reloaded %s (generation %d)", s.ID, s.path, s.cache.Generation())
	return nil
}

// Close stops the watcher, cancels any running work, closes the file and
// the event stream. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.parseCancel
	s.mu.Unlock()

	s.closeCancel()
	if cancel != nil {
		cancel()
	}
	s.watch.Stop()
	// Taking workMu waits out any in-flight reload or inline decode.
	s.workMu.Lock()
	err := s.reader.Close()
	close(s.events)
	s.workMu.Unlock()
	logging.Info("session %s closed", s.ID)
	return err
}

func (s *Session) watchReload() {
	if err := s.Refresh(s.closeCtx); err != nil {
		logging.Warn("session %s: reload after file change failed: %v", s.ID, err)
	}
}

func (s *Session) watchNotify(st watcher.State) {
	s.emit(Event{Kind: EventWatchState, WatchState: st})
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		logging.Debug("session %s: dropping %s event, consumer is behind", s.ID, ev.Kind)
	}
}
