package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"sqlite-viewer/internal/reader"
	"sqlite-viewer/internal/session"
	"sqlite-viewer/internal/sqlite"
)

const defaultPageLimit = 100

// PageSummary is the JSON shape of one decoded page.
type PageSummary struct {
	Number          uint32   `json:"number"`
	Type            string   `json:"type"`
	ShortName       string   `json:"shortName"`
	Decoded         bool     `json:"decoded"`
	CellCount       uint16   `json:"cellCount,omitempty"`
	UsedBytes       uint32   `json:"usedBytes,omitempty"`
	FreeBytes       uint32   `json:"freeBytes,omitempty"`
	HeaderBytes     uint32   `json:"headerBytes,omitempty"`
	FragmentedBytes uint8    `json:"fragmentedBytes,omitempty"`
	Utilization     float64  `json:"utilization"`
	Inconsistent    bool     `json:"inconsistent,omitempty"`
	RightChild      uint32   `json:"rightChild,omitempty"`
	FreelistNext    uint32   `json:"freelistNext,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

func summarize(p *sqlite.Page) PageSummary {
	return PageSummary{
		Number:          p.Number,
		Type:            p.Type.String(),
		ShortName:       p.Type.ShortName(),
		Decoded:         true,
		CellCount:       p.CellCount,
		UsedBytes:       p.UsedBytes,
		FreeBytes:       p.FreeBytes,
		HeaderBytes:     p.HeaderBytes,
		FragmentedBytes: p.FragmentedBytes,
		Utilization:     p.Utilization(),
		Inconsistent:    p.Inconsistent,
		RightChild:      p.RightChild,
		FreelistNext:    p.FreelistNext,
		Warnings:        p.Warnings,
	}
}

// ListPagesResponse is a window into the page list.
type ListPagesResponse struct {
	Total  uint32        `json:"total"`
	Offset uint32        `json:"offset"`
	Limit  uint32        `json:"limit"`
	Pages  []PageSummary `json:"pages"`
}

// ListPages returns summaries for a range of pages. Pages not yet
// decoded by a running parse are reported with decoded=false rather
// than waiting for them.
func (h *Handlers) ListPages(w http.ResponseWriter, r *http.Request) {
	total := h.session.PageCount()

	offset := uint32(0)
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeJSONError(w, "invalid offset", http.StatusBadRequest)
			return
		}
		offset = uint32(parsed)
	}
	limit := uint32(defaultPageLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil || parsed == 0 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = uint32(parsed)
	}

	response := ListPagesResponse{
		Total:  total,
		Offset: offset,
		Limit:  limit,
		Pages:  []PageSummary{},
	}
	for i := uint32(0); i < limit; i++ {
		n := offset + i + 1 // page numbers are 1-based
		if n > total || n < offset+1 {
			break
		}
		page, err := h.session.Page(n)
		if err != nil {
			writeEngineError(w, err, http.StatusInternalServerError)
			return
		}
		if page == nil {
			response.Pages = append(response.Pages, PageSummary{
				Number:    n,
				Type:      sqlite.PageTypeUnknown.String(),
				ShortName: sqlite.PageTypeUnknown.ShortName(),
				Decoded:   false,
			})
			continue
		}
		response.Pages = append(response.Pages, summarize(page))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// GetPage returns the summary for a single page.
func (h *Handlers) GetPage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	parsed, err := strconv.ParseUint(vars["number"], 10, 32)
	if err != nil || parsed == 0 {
		writeJSONError(w, "invalid page number", http.StatusBadRequest)
		return
	}
	n := uint32(parsed)

	page, err := h.session.Page(n)
	if err != nil {
		switch {
		case errors.Is(err, reader.ErrOutOfRange):
			writeEngineError(w, err, http.StatusNotFound)
		case errors.Is(err, reader.ErrFileGone):
			writeEngineError(w, err, http.StatusGone)
		case errors.Is(err, session.ErrClosed):
			writeEngineError(w, err, http.StatusServiceUnavailable)
		default:
			writeEngineError(w, err, http.StatusInternalServerError)
		}
		return
	}
	if page == nil {
		// A parse is running and has not reached this page yet.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, PageSummary{
			Number:    n,
			Type:      sqlite.PageTypeUnknown.String(),
			ShortName: sqlite.PageTypeUnknown.ShortName(),
			Decoded:   false,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, summarize(page))
}
