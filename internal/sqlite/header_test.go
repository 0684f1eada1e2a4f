package sqlite

import (
	"errors"
	"testing"

	"sqlite-viewer/internal/sqlite/sqlitetest"
)

func validHeaderBytes() []byte {
	db := sqlitetest.New(4096, 1)
	return db.Bytes()[:HeaderSize]
}

func TestParseHeaderValid(t *testing.T) {
	h, err := ParseHeader(validHeaderBytes())
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}

	if h.PageSize != 4096 {
		t.Errorf("PageSize = %d, want 4096", h.PageSize)
	}
	if h.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", h.PageCount)
	}
	if h.TextEncoding != EncodingUTF8 {
		t.Errorf("TextEncoding = %v, want UTF-8", h.TextEncoding)
	}
	if h.ChangeCounter != 1 || h.VersionValidFor != 1 {
		t.Errorf("ChangeCounter=%d VersionValidFor=%d, want 1/1", h.ChangeCounter, h.VersionValidFor)
	}
	if h.SchemaFormat != 4 {
		t.Errorf("SchemaFormat = %d, want 4", h.SchemaFormat)
	}
}

func TestParseHeaderBadMagic(t *testing.T) {
	db := sqlitetest.New(4096, 1)
	db.CorruptMagic()

	_, err := ParseHeader(db.Bytes()[:HeaderSize])
	if !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

func TestParseHeaderShortInput(t *testing.T) {
	_, err := ParseHeader(make([]byte, 50))
	if !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader for short input, got %v", err)
	}
}

func TestParseHeaderPageSize(t *testing.T) {
	tests := []struct {
		name     string
		raw      uint16
		expected uint32
		wantErr  bool
	}{
		{"minimum", 512, 512, false},
		{"common", 4096, 4096, false},
		{"largest encodable", 32768, 32768, false},
		{"one means 64k", 1, 65536, false},
		{"not a power of two", 1000, 0, true},
		{"too small", 256, 0, true},
		{"zero", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validHeaderBytes()
			raw[16] = byte(tt.raw >> 8)
			raw[17] = byte(tt.raw)

			h, err := ParseHeader(raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidHeader) {
					t.Fatalf("expected ErrInvalidHeader, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHeader failed: %v", err)
			}
			if h.PageSize != tt.expected {
				t.Errorf("PageSize = %d, want %d", h.PageSize, tt.expected)
			}
		})
	}
}

func TestParseHeaderUnsupportedVersions(t *testing.T) {
	t.Run("read version", func(t *testing.T) {
		raw := validHeaderBytes()
		raw[19] = 3

		_, err := ParseHeader(raw)
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
		}
	})

	t.Run("schema format", func(t *testing.T) {
		raw := validHeaderBytes()
		raw[47] = 9

		_, err := ParseHeader(raw)
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
		}
	})
}

func TestHeaderTotalPages(t *testing.T) {
	h := &Header{PageSize: 4096, PageCount: 3, ChangeCounter: 1, VersionValidFor: 1}

	if got := h.TotalPages(3 * 4096); got != 3 {
		t.Errorf("TotalPages = %d, want 3 (header count trusted)", got)
	}

	// A stale header count (change counter mismatch) falls back to file size.
	h.VersionValidFor = 0
	if got := h.TotalPages(5 * 4096); got != 5 {
		t.Errorf("TotalPages = %d, want 5 (derived from file size)", got)
	}

	// A header count larger than the file can hold is never trusted.
	h.VersionValidFor = 1
	h.PageCount = 100
	if got := h.TotalPages(2 * 4096); got != 2 {
		t.Errorf("TotalPages = %d, want 2 (clamped to file size)", got)
	}
}

func TestHeaderPageOffset(t *testing.T) {
	h := &Header{PageSize: 4096}
	if got := h.PageOffset(1); got != 0 {
		t.Errorf("PageOffset(1) = %d, want 0", got)
	}
	if got := h.PageOffset(3); got != 8192 {
		t.Errorf("PageOffset(3) = %d, want 8192", got)
	}
}

func TestHeaderSameFile(t *testing.T) {
	a := &Header{PageSize: 4096, TextEncoding: EncodingUTF8}
	b := &Header{PageSize: 4096, TextEncoding: EncodingUTF8}
	if !a.SameFile(b) {
		t.Error("identical structural fields should compare as same file")
	}

	b.PageSize = 8192
	if a.SameFile(b) {
		t.Error("page size change must be treated as a different file")
	}
	if a.SameFile(nil) {
		t.Error("nil header is never the same file")
	}
}
