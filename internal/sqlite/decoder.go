package sqlite

import (
	"encoding/binary"
	"fmt"
)

// DecodeHint classifies pages whose role cannot be derived from the page
// image alone. The parse pipeline derives hints by walking the freelist
// trunk chain; DecodeHintNone lets the decoder classify from the type flag.
type DecodeHint int

const (
	DecodeHintNone DecodeHint = iota
	DecodeHintFreelistTrunk
	DecodeHintFreelistLeaf
	DecodeHintOverflow
	DecodeHintPointerMap
	DecodeHintLockByte
)

// btree page header layout, relative to the header start.
const (
	btreeLeafHeaderSize     = 8
	btreeInteriorHeaderSize = 12
)

// DecodePage decodes one raw page image into a Page summary.
//
// It never panics for any byte content: arithmetic hazards are clamped and
// recorded as warnings, and only a structurally unusable image (truncated, or
// a cell pointer outside the page) yields a *CorruptPageError. A corrupt page
// never prevents other pages from decoding.
func DecodePage(number uint32, raw []byte, h *Header, hint DecodeHint) (*Page, error) {
	page := &Page{
		Number: number,
		Offset: h.PageOffset(number),
		Size:   h.PageSize,
	}

	if uint32(len(raw)) < h.PageSize {
		return nil, &CorruptPageError{
			PageNumber: number,
			Reason:     fmt.Sprintf("short page image: %d of %d bytes", len(raw), h.PageSize),
		}
	}
	raw = raw[:h.PageSize]

	// Page 1 shares its image with the 100-byte database header.
	base := uint32(0)
	if number == 1 {
		base = HeaderSize
	}

	switch {
	case hint == DecodeHintFreelistTrunk,
		hint == DecodeHintNone && h.FirstFreelistPage != 0 && number == h.FirstFreelistPage:
		return decodeFreelistTrunk(page, raw, base)
	case hint == DecodeHintFreelistLeaf:
		return decodeOpaque(page, PageTypeFreelistLeaf, base, 0), nil
	case hint == DecodeHintOverflow:
		return decodeOpaque(page, PageTypeOverflow, base, page.Size-base), nil
	case hint == DecodeHintPointerMap:
		return decodeOpaque(page, PageTypePointerMap, base, page.Size-base), nil
	case hint == DecodeHintLockByte:
		return decodeOpaque(page, PageTypeLockByte, base, 0), nil
	}

	flag := raw[base]
	pageType := pageTypeFromFlag(flag)
	if pageType == PageTypeUnknown {
		if flag == 0 && h.FreelistPages > 0 {
			// Zeroed pages in a file with a non-empty freelist are freelist
			// leaves whose trunk was not reachable from the header.
			return decodeOpaque(page, PageTypeFreelistLeaf, base, 0), nil
		}
		page.Inconsistent = true
		page.warnf("unrecognized page type byte 0x%02x", flag)
		return page, nil
	}

	return decodeBTree(page, raw, base, pageType)
}

// decodeBTree parses the 8- or 12-byte b-tree page header and the cell
// pointer array, and derives the page's space accounting.
func decodeBTree(page *Page, raw []byte, base uint32, pageType PageType) (*Page, error) {
	page.Type = pageType

	headerLen := uint32(btreeLeafHeaderSize)
	if pageType.HasRightChild() {
		headerLen = btreeInteriorHeaderSize
	}
	if base+headerLen > page.Size {
		return nil, &CorruptPageError{PageNumber: page.Number, Reason: "b-tree page header exceeds page bounds"}
	}

	firstFreeblock := binary.BigEndian.Uint16(raw[base+1 : base+3])
	page.CellCount = binary.BigEndian.Uint16(raw[base+3 : base+5])
	contentStart := uint32(binary.BigEndian.Uint16(raw[base+5 : base+7]))
	page.FragmentedBytes = raw[base+7]
	if pageType.HasRightChild() {
		page.RightChild = binary.BigEndian.Uint32(raw[base+8 : base+12])
	}

	// A zero content-area start encodes 65536 on 64KiB pages; on smaller
	// pages it means an empty cell content area at the page end.
	if contentStart == 0 {
		contentStart = page.Size
	}
	if contentStart > page.Size {
		page.warnf("cell content start %d beyond page size %d; clamped", contentStart, page.Size)
		contentStart = page.Size
	}
	if uint32(firstFreeblock) >= page.Size && firstFreeblock != 0 {
		page.warnf("first freeblock offset %d beyond page size", firstFreeblock)
	}

	arrayStart := base + headerLen
	arrayEnd := arrayStart + 2*uint32(page.CellCount)
	if arrayEnd > page.Size {
		return nil, &CorruptPageError{
			PageNumber: page.Number,
			Reason:     fmt.Sprintf("cell pointer array (%d cells) exceeds page bounds", page.CellCount),
		}
	}

	// Cells are allocated from the end of the page, so pointers read in
	// array order are monotonically non-increasing in a well-formed page.
	// A violation is an anomaly worth surfacing, not grounds for rejection.
	prev := page.Size
	monotonic := true
	for i := uint32(0); i < uint32(page.CellCount); i++ {
		ptr := uint32(binary.BigEndian.Uint16(raw[arrayStart+2*i : arrayStart+2*i+2]))
		if ptr >= page.Size {
			return nil, &CorruptPageError{
				PageNumber: page.Number,
				Reason:     fmt.Sprintf("cell %d pointer %d beyond page size %d", i, ptr, page.Size),
			}
		}
		if ptr < arrayEnd {
			page.warnf("cell %d pointer %d overlaps page header region", i, ptr)
		}
		if ptr > prev && monotonic {
			page.warnf("cell pointers not monotonically non-increasing at cell %d", i)
			monotonic = false
		}
		prev = ptr

		if pageType.HasRightChild() && ptr+4 <= page.Size {
			page.ChildPointers = append(page.ChildPointers, binary.BigEndian.Uint32(raw[ptr:ptr+4]))
		}
	}

	// Space accounting with saturating arithmetic: raw fields that would
	// imply a negative result clamp to zero and flag the page instead.
	page.HeaderBytes = arrayEnd
	page.FreeBytes = page.satSub(contentStart, page.HeaderBytes, "free space")
	page.UsedBytes = page.satSub(page.Size, page.FreeBytes+page.HeaderBytes, "used space")

	return page, nil
}

// decodeFreelistTrunk parses a freelist trunk page: a next-trunk pointer, a
// leaf count, and that many leaf page numbers.
func decodeFreelistTrunk(page *Page, raw []byte, base uint32) (*Page, error) {
	page.Type = PageTypeFreelistTrunk
	if base+8 > page.Size {
		return nil, &CorruptPageError{PageNumber: page.Number, Reason: "freelist trunk header exceeds page bounds"}
	}

	page.FreelistNext = binary.BigEndian.Uint32(raw[base : base+4])
	count := binary.BigEndian.Uint32(raw[base+4 : base+8])

	maxLeaves := (page.Size - base - 8) / 4
	if count > maxLeaves {
		page.warnf("freelist leaf count %d exceeds page capacity %d; truncated", count, maxLeaves)
		page.Inconsistent = true
		count = maxLeaves
	}

	page.FreelistLeaves = make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		off := base + 8 + 4*i
		page.FreelistLeaves = append(page.FreelistLeaves, binary.BigEndian.Uint32(raw[off:off+4]))
	}

	page.HeaderBytes = base
	page.UsedBytes = 8 + 4*count
	page.FreeBytes = page.satSub(page.Size, page.UsedBytes+page.HeaderBytes, "free space")
	return page, nil
}

// decodeOpaque summarizes page types whose interior layout the engine does
// not inspect (freelist leaves, overflow, pointer map, lock byte).
func decodeOpaque(page *Page, pageType PageType, base, used uint32) *Page {
	page.Type = pageType
	page.HeaderBytes = base
	page.UsedBytes = used
	page.FreeBytes = page.satSub(page.Size, used+base, "free space")
	return page
}

// warnf appends a formatted parse warning to the page.
func (p *Page) warnf(format string, args ...interface{}) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// satSub is a saturating subtraction: an underflow clamps to zero, records a
// warning, and flags the page inconsistent rather than wrapping around.
func (p *Page) satSub(a, b uint32, what string) uint32 {
	if b > a {
		p.warnf("%s underflow (%d - %d); clamped to zero", what, a, b)
		p.Inconsistent = true
		return 0
	}
	return a - b
}
