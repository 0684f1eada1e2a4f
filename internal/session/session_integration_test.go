package session

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"sqlite-viewer/internal/parse"
	"sqlite-viewer/internal/sqlite"
)

// setupRealDB creates a database with the real SQLite library so the
// decoder is exercised against genuine on-disk pages, not fixtures.
func setupRealDB(t testing.TB, pageSize int, rows int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "real.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open sqlite database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("PRAGMA page_size = %d", pageSize)); err != nil {
		t.Fatalf("Failed to set page size: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, blob BLOB)"); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	if _, err := db.Exec("CREATE INDEX idx_items_name ON items(name)"); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	for i := 0; i < rows; i++ {
		_, err := db.Exec("INSERT INTO items (name, blob) VALUES (?, ?)",
			fmt.Sprintf("item-%04d", i), make([]byte, 200))
		if err != nil {
			t.Fatalf("Failed to insert row %d: %v", i, err)
		}
	}
	return path
}

func TestRealDatabaseFullParseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	path := setupRealDB(t, 4096, 500)
	s, err := Open(path, testOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	h := s.Header()
	if h.PageSize != 4096 {
		t.Errorf("PageSize = %d, want 4096", h.PageSize)
	}
	if h.TextEncoding != sqlite.EncodingUTF8 {
		t.Errorf("TextEncoding = %v, want UTF-8", h.TextEncoding)
	}

	events, err := s.StartFullParse(context.Background())
	if err != nil {
		t.Fatalf("StartFullParse failed: %v", err)
	}

	counts := map[sqlite.PageType]int{}
	var warnings, ready int
	var failed error
	for ev := range events {
		switch ev.Kind {
		case parse.EventPageReady:
			ready++
			counts[ev.Page.Type]++
			if ev.Page.Inconsistent {
				t.Errorf("page %d decoded inconsistent: %v", ev.Page.Number, ev.Page.Warnings)
			}
		case parse.EventWarning:
			warnings++
		case parse.EventFailed:
			failed = ev.Err
		}
	}
	if failed != nil {
		t.Fatalf("parse failed: %v", failed)
	}
	total := s.PageCount()
	if uint32(ready) != total {
		t.Errorf("PageReady count = %d, want %d", ready, total)
	}
	if warnings != 0 {
		t.Errorf("got %d warnings on a clean database", warnings)
	}
	if counts[sqlite.PageTypeTableLeaf] == 0 {
		t.Error("expected table leaf pages in a populated database")
	}
	if counts[sqlite.PageTypeIndexLeaf] == 0 {
		t.Error("expected index leaf pages after CREATE INDEX")
	}
	// 500 rows of ~200 bytes at 4k pages splits the table b-tree.
	if counts[sqlite.PageTypeTableInterior] == 0 {
		t.Error("expected at least one table interior page")
	}
}

func TestRealDatabaseFreelistIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	path := setupRealDB(t, 4096, 500)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	// Deleting most rows without VACUUM leaves pages on the freelist.
	if _, err := db.Exec("DELETE FROM items WHERE id > 10"); err != nil {
		t.Fatalf("Failed to delete rows: %v", err)
	}
	db.Close()

	s, err := Open(path, testOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	h := s.Header()
	if h.FreelistPages == 0 {
		t.Skip("sqlite reused all pages, nothing on the freelist")
	}

	events, err := s.StartFullParse(context.Background())
	if err != nil {
		t.Fatalf("StartFullParse failed: %v", err)
	}
	var freelist uint32
	for ev := range events {
		if ev.Kind != parse.EventPageReady {
			continue
		}
		switch ev.Page.Type {
		case sqlite.PageTypeFreelistTrunk, sqlite.PageTypeFreelistLeaf:
			freelist++
		}
	}
	if freelist != h.FreelistPages {
		t.Errorf("classified %d freelist pages, header says %d", freelist, h.FreelistPages)
	}
}

func TestRealDatabaseLazyPageIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	path := setupRealDB(t, 4096, 50)
	s, err := Open(path, testOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	// Page 1 always holds the schema table in a real database.
	page, err := s.Page(1)
	if err != nil {
		t.Fatalf("Page(1) failed: %v", err)
	}
	if page == nil {
		t.Fatal("Page(1) returned nil")
	}
	if !page.Type.IsBTree() {
		t.Errorf("page 1 type = %v, want a b-tree page", page.Type)
	}
	if page.CellCount == 0 {
		t.Error("schema page has no cells despite CREATE TABLE")
	}
	if page.Inconsistent {
		t.Errorf("page 1 inconsistent: %v", page.Warnings)
	}
}
