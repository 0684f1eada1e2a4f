package sqlite

// PageType classifies a database page.
type PageType uint8

const (
	PageTypeUnknown PageType = iota
	PageTypeTableLeaf
	PageTypeTableInterior
	PageTypeIndexLeaf
	PageTypeIndexInterior
	PageTypeFreelistTrunk
	PageTypeFreelistLeaf
	PageTypeOverflow
	PageTypePointerMap
	PageTypeLockByte
)

// B-tree page type flag bytes as they appear on disk.
const (
	flagIndexInterior = 0x02
	flagTableInterior = 0x05
	flagIndexLeaf     = 0x0a
	flagTableLeaf     = 0x0d
)

func pageTypeFromFlag(b byte) PageType {
	switch b {
	case flagIndexInterior:
		return PageTypeIndexInterior
	case flagTableInterior:
		return PageTypeTableInterior
	case flagIndexLeaf:
		return PageTypeIndexLeaf
	case flagTableLeaf:
		return PageTypeTableLeaf
	default:
		return PageTypeUnknown
	}
}

func (t PageType) String() string {
	switch t {
	case PageTypeTableLeaf:
		return "Table B-Tree Leaf"
	case PageTypeTableInterior:
		return "Table B-Tree Interior"
	case PageTypeIndexLeaf:
		return "Index B-Tree Leaf"
	case PageTypeIndexInterior:
		return "Index B-Tree Interior"
	case PageTypeFreelistTrunk:
		return "Freelist Trunk"
	case PageTypeFreelistLeaf:
		return "Freelist Leaf"
	case PageTypeOverflow:
		return "Payload Overflow"
	case PageTypePointerMap:
		return "Pointer Map"
	case PageTypeLockByte:
		return "Lock Byte"
	default:
		return "Unknown"
	}
}

// ShortName returns the compact three-letter label used in listings.
func (t PageType) ShortName() string {
	switch t {
	case PageTypeTableLeaf:
		return "TBL"
	case PageTypeTableInterior:
		return "TBI"
	case PageTypeIndexLeaf:
		return "IBL"
	case PageTypeIndexInterior:
		return "IBI"
	case PageTypeFreelistTrunk:
		return "FLT"
	case PageTypeFreelistLeaf:
		return "FLL"
	case PageTypeOverflow:
		return "POF"
	case PageTypePointerMap:
		return "PTR"
	case PageTypeLockByte:
		return "LCK"
	default:
		return "UNK"
	}
}

// IsBTree reports whether the page is a table or index b-tree page.
func (t PageType) IsBTree() bool {
	switch t {
	case PageTypeTableLeaf, PageTypeTableInterior, PageTypeIndexLeaf, PageTypeIndexInterior:
		return true
	default:
		return false
	}
}

// HasRightChild reports whether the page's b-tree header carries the
// 4-byte rightmost child pointer (interior pages only).
func (t PageType) HasRightChild() bool {
	return t == PageTypeTableInterior || t == PageTypeIndexInterior
}

// Page is the immutable decoded summary of one database page. Child links
// are page-number references resolved on demand through the session's cache;
// no live page graph is ever materialized.
type Page struct {
	Number uint32
	Offset int64
	Size   uint32

	Type      PageType
	CellCount uint16

	// Space accounting. UsedBytes + FreeBytes + HeaderBytes == Size unless
	// Inconsistent is set, in which case the raw on-disk fields did not add
	// up and values were clamped.
	UsedBytes       uint32
	FreeBytes       uint32
	HeaderBytes     uint32
	FragmentedBytes uint8
	Inconsistent    bool

	// RightChild is the rightmost child page number of interior b-tree
	// pages, 0 when absent. ChildPointers holds the left-child page number
	// of each interior cell in cell order.
	RightChild    uint32
	ChildPointers []uint32

	// Freelist trunk contents: the next trunk page (0 terminates the chain)
	// and the leaf page numbers listed on this trunk.
	FreelistNext   uint32
	FreelistLeaves []uint32

	// Warnings lists non-fatal anomalies observed while decoding, in the
	// order they were found.
	Warnings []string
}

// Utilization returns the fraction of the page occupied by header and cell
// content, in percent.
func (p *Page) Utilization() float64 {
	if p.Size == 0 {
		return 0
	}
	return float64(p.Size-p.FreeBytes) / float64(p.Size) * 100
}
