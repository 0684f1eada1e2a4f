// Package sqlitetest builds synthetic SQLite database images for tests.
//
// The builder produces byte-exact file layouts (100-byte header, fixed-size
// pages, big-endian fields) without going through a SQLite driver, so tests
// can construct malformed and edge-case pages that no real writer would emit.
package sqlitetest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// DB is an in-memory database image under construction.
type DB struct {
	PageSize uint32
	buf      []byte
}

// New returns a zero-filled database image with a valid header declaring the
// given page size and page count.
func New(pageSize uint32, pageCount uint32) *DB {
	d := &DB{
		PageSize: pageSize,
		buf:      make([]byte, int(pageSize)*int(pageCount)),
	}

	copy(d.buf, "SQLite format 3\x00")
	rawSize := pageSize
	if pageSize == 65536 {
		rawSize = 1
	}
	binary.BigEndian.PutUint16(d.buf[16:], uint16(rawSize))
	d.buf[18] = 1 // write version
	d.buf[19] = 1 // read version
	binary.BigEndian.PutUint32(d.buf[24:], 1) // change counter
	binary.BigEndian.PutUint32(d.buf[28:], pageCount)
	binary.BigEndian.PutUint32(d.buf[44:], 4) // schema format
	binary.BigEndian.PutUint32(d.buf[56:], 1) // UTF-8
	binary.BigEndian.PutUint32(d.buf[92:], 1) // version valid for
	binary.BigEndian.PutUint32(d.buf[96:], 3045001)

	return d
}

// Bytes returns the full database image.
func (d *DB) Bytes() []byte {
	return d.buf
}

// Page returns the mutable image of a 1-indexed page.
func (d *DB) Page(n uint32) []byte {
	start := int64(n-1) * int64(d.PageSize)
	return d.buf[start : start+int64(d.PageSize)]
}

// SetHeaderUint32 overwrites a 4-byte big-endian database header field.
func (d *DB) SetHeaderUint32(offset int, v uint32) {
	binary.BigEndian.PutUint32(d.buf[offset:], v)
}

// SetFreelist declares the freelist head and total freelist page count in
// the database header.
func (d *DB) SetFreelist(firstTrunk, total uint32) {
	binary.BigEndian.PutUint32(d.buf[32:], firstTrunk)
	binary.BigEndian.PutUint32(d.buf[36:], total)
}

// CorruptMagic overwrites the magic signature.
func (d *DB) CorruptMagic() {
	copy(d.buf, "Not a database!\x00")
}

// BTreePage writes a b-tree page header and cell pointer array onto page n.
// Cell pointers are page-relative offsets; the content-area start is derived
// from the lowest pointer, or the page end when there are no cells.
func (d *DB) BTreePage(n uint32, flag byte, rightChild uint32, cellPtrs ...uint16) {
	page := d.Page(n)
	base := 0
	if n == 1 {
		base = 100
	}

	contentStart := d.PageSize
	for _, ptr := range cellPtrs {
		if uint32(ptr) < contentStart {
			contentStart = uint32(ptr)
		}
	}

	page[base] = flag
	binary.BigEndian.PutUint16(page[base+1:], 0) // no freeblocks
	binary.BigEndian.PutUint16(page[base+3:], uint16(len(cellPtrs)))
	binary.BigEndian.PutUint16(page[base+5:], uint16(contentStart))
	page[base+7] = 0

	headerLen := 8
	if flag == 0x02 || flag == 0x05 {
		binary.BigEndian.PutUint32(page[base+8:], rightChild)
		headerLen = 12
	}
	for i, ptr := range cellPtrs {
		binary.BigEndian.PutUint16(page[base+headerLen+2*i:], ptr)
	}
}

// InteriorCell writes an interior cell's 4-byte left-child pointer at the
// given page-relative offset.
func (d *DB) InteriorCell(n uint32, offset uint16, leftChild uint32) {
	binary.BigEndian.PutUint32(d.Page(n)[offset:], leftChild)
}

// FreelistTrunkPage writes a freelist trunk page: next-trunk pointer, leaf
// count, and the leaf page numbers.
func (d *DB) FreelistTrunkPage(n uint32, next uint32, leaves ...uint32) {
	page := d.Page(n)
	binary.BigEndian.PutUint32(page, next)
	binary.BigEndian.PutUint32(page[4:], uint32(len(leaves)))
	for i, leaf := range leaves {
		binary.BigEndian.PutUint32(page[8+4*i:], leaf)
	}
}

// WriteFile writes the image to a file in a test temp directory and returns
// its path.
func (d *DB) WriteFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	if err := os.WriteFile(path, d.buf, 0o644); err != nil {
		t.Fatalf("failed to write test database: %v", err)
	}
	return path
}

// WriteFileTo writes the image to an explicit path, overwriting any previous
// contents. Used by watcher tests that modify a file in place.
func (d *DB) WriteFileTo(t testing.TB, path string) {
	t.Helper()
	if err := os.WriteFile(path, d.buf, 0o644); err != nil {
		t.Fatalf("failed to write test database: %v", err)
	}
}
