package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sqlite-viewer/internal/parse"
	"sqlite-viewer/internal/reader"
	"sqlite-viewer/internal/sqlite"
	"sqlite-viewer/internal/sqlite/sqlitetest"
	"sqlite-viewer/internal/watcher"
)

func testOptions() Options {
	return Options{
		BatchSize: 4,
		Watch: watcher.Config{
			Debounce:       50 * time.Millisecond,
			MaxRetries:     2,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     50 * time.Millisecond,
		},
	}
}

// threePageDB builds the smallest interesting database: a table leaf, a
// table interior pointing at page 3, and a freelist leaf.
func threePageDB() *sqlitetest.DB {
	db := sqlitetest.New(4096, 3)
	db.BTreePage(1, 0x0d, 0, 4000, 3900)
	db.BTreePage(2, 0x05, 3)
	db.SetFreelist(0, 1)
	return db
}

func openTest(t *testing.T, db *sqlitetest.DB) *Session {
	t.Helper()
	path := db.WriteFile(t)
	s, err := Open(path, testOptions())
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func drainParse(t *testing.T, events <-chan parse.Event) []parse.Event {
	t.Helper()
	var out []parse.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("parse stream did not close, got %d events", len(out))
		}
	}
}

func waitForEvent(t *testing.T, s *Session, want EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", want)
			}
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event within %s", want, timeout)
		}
	}
}

func TestOpenRejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.db")
	if err := os.WriteFile(path, make([]byte, 50), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path, testOptions())
	if !errors.Is(err, sqlite.ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	db := sqlitetest.New(4096, 2)
	db.CorruptMagic()
	_, err := Open(db.WriteFile(t), testOptions())
	if !errors.Is(err, sqlite.ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"), testOptions())
	if !errors.Is(err, reader.ErrFileGone) {
		t.Fatalf("expected ErrFileGone, got %v", err)
	}
}

func TestHeaderAndPageCount(t *testing.T) {
	s := openTest(t, threePageDB())
	h := s.Header()
	if h.PageSize != 4096 {
		t.Errorf("PageSize = %d, want 4096", h.PageSize)
	}
	if got := s.PageCount(); got != 3 {
		t.Errorf("PageCount() = %d, want 3", got)
	}
}

func TestLazyPageDecode(t *testing.T) {
	s := openTest(t, threePageDB())

	page, err := s.Page(2)
	if err != nil {
		t.Fatalf("Page(2) failed: %v", err)
	}
	if page == nil {
		t.Fatal("Page(2) returned nil with no parse running")
	}
	if page.Type != sqlite.PageTypeTableInterior {
		t.Errorf("page 2 type = %v, want table interior", page.Type)
	}
	if page.RightChild != 3 {
		t.Errorf("page 2 right child = %d, want 3", page.RightChild)
	}
	if _, ok := s.cache.Get(2); !ok {
		t.Error("lazy decode did not cache the page")
	}

	for _, n := range []uint32{0, 4} {
		if _, err := s.Page(n); !errors.Is(err, reader.ErrOutOfRange) {
			t.Errorf("Page(%d) = %v, want ErrOutOfRange", n, err)
		}
	}
}

func TestFullParseDeliversAllPages(t *testing.T) {
	s := openTest(t, threePageDB())

	events, err := s.StartFullParse(context.Background())
	if err != nil {
		t.Fatalf("StartFullParse failed: %v", err)
	}
	got := drainParse(t, events)
	if len(got) == 0 || got[len(got)-1].Kind != parse.EventDone {
		t.Fatalf("expected terminal Done, got %+v", got)
	}

	var ready []uint32
	for _, ev := range got {
		if ev.Kind == parse.EventPageReady {
			ready = append(ready, ev.Page.Number)
		}
	}
	if len(ready) != 3 {
		t.Fatalf("PageReady count = %d, want 3", len(ready))
	}
	page, err := s.Page(3)
	if err != nil || page == nil {
		t.Fatalf("Page(3) after parse = (%v, %v), want cached page", page, err)
	}
	if page.Type != sqlite.PageTypeFreelistLeaf {
		t.Errorf("page 3 type = %v, want freelist leaf", page.Type)
	}
}

func TestSecondParseRejectedWhileRunning(t *testing.T) {
	// Enough pages that the pipeline fills its buffers and blocks while
	// we deliberately do not consume the stream.
	s := openTest(t, sqlitetest.New(512, 2048))

	events, err := s.StartFullParse(context.Background())
	if err != nil {
		t.Fatalf("StartFullParse failed: %v", err)
	}
	if _, err := s.StartFullParse(context.Background()); !errors.Is(err, ErrParseRunning) {
		t.Fatalf("second StartFullParse = %v, want ErrParseRunning", err)
	}
	s.CancelParse()
	drainParse(t, events)
}

func TestPageMissWhileParseRunningReturnsNil(t *testing.T) {
	s := openTest(t, sqlitetest.New(512, 2048))

	events, err := s.StartFullParse(context.Background())
	if err != nil {
		t.Fatalf("StartFullParse failed: %v", err)
	}
	// The unconsumed stream keeps the run in flight; a miss on the last
	// page must not decode inline.
	page, err := s.Page(2048)
	if err != nil {
		t.Fatalf("Page during parse failed: %v", err)
	}
	if page != nil {
		t.Error("Page miss during running parse should return nil")
	}
	s.CancelParse()
	drainParse(t, events)
}

func TestRefreshInvalidatesAndReparses(t *testing.T) {
	db := threePageDB()
	s := openTest(t, db)

	events, err := s.StartFullParse(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	drainParse(t, events)
	genBefore := s.cache.Generation()

	// Rewrite page 2 as a leaf so the reload observably changes state.
	db.BTreePage(2, 0x0d, 0, 400)
	db.WriteFileTo(t, s.Path())

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if gen := s.cache.Generation(); gen != genBefore+1 {
		t.Errorf("generation = %d, want %d", gen, genBefore+1)
	}
	page, err := s.Page(2)
	if err != nil || page == nil {
		t.Fatalf("Page(2) after refresh = (%v, %v)", page, err)
	}
	if page.Type != sqlite.PageTypeTableLeaf {
		t.Errorf("page 2 type after refresh = %v, want table leaf", page.Type)
	}

	var sawStarted, sawFinished bool
	for done := false; !done; {
		select {
		case ev := <-s.Events():
			switch ev.Kind {
			case EventReloadStarted:
				sawStarted = true
			case EventReloadFinished:
				sawFinished = true
				done = true
			}
		default:
			done = true
		}
	}
	if !sawStarted || !sawFinished {
		t.Errorf("reload events: started=%v finished=%v, want both", sawStarted, sawFinished)
	}
}

func TestRefreshRejectsHeaderChange(t *testing.T) {
	s := openTest(t, threePageDB())

	// Same path, different page size: not the same database anymore.
	sqlitetest.New(512, 3).WriteFileTo(t, s.Path())

	err := s.Refresh(context.Background())
	if !errors.Is(err, ErrHeaderChanged) {
		t.Fatalf("Refresh = %v, want ErrHeaderChanged", err)
	}
	ev := waitForEvent(t, s, EventFailed, time.Second)
	if ev.ErrorKind != "header_changed" || !ev.Recoverable {
		t.Errorf("failed event = kind %q recoverable %v, want header_changed/true", ev.ErrorKind, ev.Recoverable)
	}
}

func TestWatchTriggersReload(t *testing.T) {
	db := threePageDB()
	s := openTest(t, db)

	if err := s.StartWatch(); err != nil {
		t.Fatalf("StartWatch failed: %v", err)
	}
	waitForWatchState(t, s, watcher.StateWatching)

	db.BTreePage(2, 0x0d, 0, 400)
	db.WriteFileTo(t, s.Path())

	waitForEvent(t, s, EventReloadFinished, 5*time.Second)
	page, err := s.Page(2)
	if err != nil || page == nil {
		t.Fatalf("Page(2) after watched reload = (%v, %v)", page, err)
	}
	if page.Type != sqlite.PageTypeTableLeaf {
		t.Errorf("page 2 type = %v, want table leaf", page.Type)
	}
}

func TestWatchCanBeRestartedAfterStop(t *testing.T) {
	s := openTest(t, threePageDB())

	if err := s.StartWatch(); err != nil {
		t.Fatalf("first StartWatch failed: %v", err)
	}
	waitForWatchState(t, s, watcher.StateWatching)
	s.StopWatch()
	waitForWatchState(t, s, watcher.StateIdle)

	if err := s.StartWatch(); err != nil {
		t.Fatalf("StartWatch after stop failed: %v", err)
	}
	waitForWatchState(t, s, watcher.StateWatching)

	if err := s.StartWatch(); err == nil {
		t.Error("StartWatch while watching should fail")
	}
}

func waitForWatchState(t *testing.T, s *Session, want watcher.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.WatchState() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("watch state = %v, want %v", s.WatchState(), want)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := openTest(t, threePageDB())
	if err := s.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := s.Page(1); !errors.Is(err, ErrClosed) {
		t.Errorf("Page after Close = %v, want ErrClosed", err)
	}
	if _, err := s.StartFullParse(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("StartFullParse after Close = %v, want ErrClosed", err)
	}
	if err := s.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Refresh after Close = %v, want ErrClosed", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err         error
		kind        string
		recoverable bool
	}{
		{sqlite.ErrInvalidHeader, "invalid_header", false},
		{sqlite.ErrUnsupportedVersion, "unsupported_version", false},
		{ErrHeaderChanged, "header_changed", true},
		{reader.ErrFileGone, "file_gone", true},
		{reader.ErrOutOfRange, "out_of_range", true},
		{parse.ErrCancelled, "cancelled", true},
		{&sqlite.CorruptPageError{PageNumber: 7, Reason: "bad"}, "corrupt_page", true},
		{ErrClosed, "session_closed", false},
		{errors.New("disk on fire"), "io", true},
	}
	for _, tt := range tests {
		kind, recoverable := ClassifyError(tt.err)
		if kind != tt.kind || recoverable != tt.recoverable {
			t.Errorf("ClassifyError(%v) = (%q, %v), want (%q, %v)",
				tt.err, kind, recoverable, tt.kind, tt.recoverable)
		}
	}
}
