package sqlite

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of the database header at the start of the file.
// Page 1's usable region begins after it.
const HeaderSize = 100

// magic is the 16-byte signature every SQLite database file starts with.
var magic = []byte("SQLite format 3\x00")

// TextEncoding is the database text encoding declared in the header.
type TextEncoding uint32

const (
	EncodingUTF8    TextEncoding = 1
	EncodingUTF16LE TextEncoding = 2
	EncodingUTF16BE TextEncoding = 3
)

func (e TextEncoding) String() string {
	switch e {
	case EncodingUTF8:
		return "UTF-8"
	case EncodingUTF16LE:
		return "UTF-16le"
	case EncodingUTF16BE:
		return "UTF-16be"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(e))
	}
}

// Header is the parsed 100-byte database header. It is created once per open
// session and immutable thereafter; a structural change on disk (page size,
// text encoding) is treated as a new file.
type Header struct {
	PageSize          uint32 // actual size, 512..65536 (raw value 1 means 65536)
	WriteVersion      uint8
	ReadVersion       uint8
	ReservedSpace     uint8
	ChangeCounter     uint32
	PageCount         uint32 // as declared in the header, may be stale
	FirstFreelistPage uint32 // first freelist trunk page, 0 if none
	FreelistPages     uint32
	SchemaCookie      uint32
	SchemaFormat      uint32
	DefaultCacheSize  uint32
	LargestRootPage   uint32
	TextEncoding      TextEncoding
	UserVersion       uint32
	IncrementalVacuum uint32
	ApplicationID     uint32
	VersionValidFor   uint32
	SQLiteVersion     uint32
}

// ParseHeader decodes and validates the first 100 bytes of a database file.
// It returns ErrInvalidHeader for a bad magic or page size and
// ErrUnsupportedVersion for format versions this engine cannot read.
func ParseHeader(raw []byte) (*Header, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: file shorter than %d bytes", ErrInvalidHeader, HeaderSize)
	}
	if !bytes.Equal(raw[:16], magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidHeader)
	}

	rawPageSize := binary.BigEndian.Uint16(raw[16:18])
	pageSize := uint32(rawPageSize)
	if rawPageSize == 1 {
		// Value 1 encodes the maximum page size of 65536, which does not fit
		// in the 16-bit header field.
		pageSize = 65536
	}
	if pageSize < 512 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("%w: page size %d is not a power of two in 512..65536", ErrInvalidHeader, pageSize)
	}

	h := &Header{
		PageSize:          pageSize,
		WriteVersion:      raw[18],
		ReadVersion:       raw[19],
		ReservedSpace:     raw[20],
		ChangeCounter:     binary.BigEndian.Uint32(raw[24:28]),
		PageCount:         binary.BigEndian.Uint32(raw[28:32]),
		FirstFreelistPage: binary.BigEndian.Uint32(raw[32:36]),
		FreelistPages:     binary.BigEndian.Uint32(raw[36:40]),
		SchemaCookie:      binary.BigEndian.Uint32(raw[40:44]),
		SchemaFormat:      binary.BigEndian.Uint32(raw[44:48]),
		DefaultCacheSize:  binary.BigEndian.Uint32(raw[48:52]),
		LargestRootPage:   binary.BigEndian.Uint32(raw[52:56]),
		TextEncoding:      TextEncoding(binary.BigEndian.Uint32(raw[56:60])),
		UserVersion:       binary.BigEndian.Uint32(raw[60:64]),
		IncrementalVacuum: binary.BigEndian.Uint32(raw[64:68]),
		ApplicationID:     binary.BigEndian.Uint32(raw[68:72]),
		VersionValidFor:   binary.BigEndian.Uint32(raw[92:96]),
		SQLiteVersion:     binary.BigEndian.Uint32(raw[96:100]),
	}

	if h.ReadVersion != 1 && h.ReadVersion != 2 {
		return nil, fmt.Errorf("%w: read format %d", ErrUnsupportedVersion, h.ReadVersion)
	}
	if h.SchemaFormat > 4 {
		return nil, fmt.Errorf("%w: schema format %d", ErrUnsupportedVersion, h.SchemaFormat)
	}

	return h, nil
}

// TotalPages returns the page count to parse. The header's declared count is
// trusted only when the change counter validates it and it fits the file;
// otherwise the count is derived from the file size.
func (h *Header) TotalPages(fileSize int64) uint32 {
	byFile := uint32(fileSize / int64(h.PageSize))
	if h.PageCount > 0 && h.VersionValidFor == h.ChangeCounter && h.PageCount <= byFile {
		return h.PageCount
	}
	return byFile
}

// PageOffset returns the byte offset of a 1-indexed page number.
func (h *Header) PageOffset(pageNumber uint32) int64 {
	return int64(pageNumber-1) * int64(h.PageSize)
}

// UsableSize is the page size minus the reserved space at the end of each
// page declared in the header.
func (h *Header) UsableSize() uint32 {
	return h.PageSize - uint32(h.ReservedSpace)
}

// SameFile reports whether two headers describe structurally compatible
// files. A mismatch forces a full re-open rather than an incremental reload.
func (h *Header) SameFile(other *Header) bool {
	return other != nil &&
		h.PageSize == other.PageSize &&
		h.TextEncoding == other.TextEncoding &&
		h.ReservedSpace == other.ReservedSpace
}
