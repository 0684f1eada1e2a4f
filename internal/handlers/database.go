package handlers

import (
	"net/http"

	"sqlite-viewer/internal/cache"
)

// DatabaseInfoResponse describes the open file and its parsed header.
type DatabaseInfoResponse struct {
	Path       string `json:"path"`
	TotalPages uint32 `json:"totalPages"`

	PageSize          uint32 `json:"pageSize"`
	WriteVersion      uint8  `json:"writeVersion"`
	ReadVersion       uint8  `json:"readVersion"`
	ReservedSpace     uint8  `json:"reservedSpace"`
	ChangeCounter     uint32 `json:"changeCounter"`
	HeaderPageCount   uint32 `json:"headerPageCount"`
	FirstFreelistPage uint32 `json:"firstFreelistPage"`
	FreelistPages     uint32 `json:"freelistPages"`
	SchemaCookie      uint32 `json:"schemaCookie"`
	SchemaFormat      uint32 `json:"schemaFormat"`
	TextEncoding      string `json:"textEncoding"`
	UserVersion       uint32 `json:"userVersion"`
	ApplicationID     uint32 `json:"applicationId"`
	SQLiteVersion     uint32 `json:"sqliteVersion"`

	WatchState string      `json:"watchState"`
	Cache      cache.Stats `json:"cache"`
}

// GetDatabaseInfo returns the parsed header plus session state.
func (h *Handlers) GetDatabaseInfo(w http.ResponseWriter, _ *http.Request) {
	hdr := h.session.Header()

	response := DatabaseInfoResponse{
		Path:              h.session.Path(),
		TotalPages:        h.session.PageCount(),
		PageSize:          hdr.PageSize,
		WriteVersion:      hdr.WriteVersion,
		ReadVersion:       hdr.ReadVersion,
		ReservedSpace:     hdr.ReservedSpace,
		ChangeCounter:     hdr.ChangeCounter,
		HeaderPageCount:   hdr.PageCount,
		FirstFreelistPage: hdr.FirstFreelistPage,
		FreelistPages:     hdr.FreelistPages,
		SchemaCookie:      hdr.SchemaCookie,
		SchemaFormat:      hdr.SchemaFormat,
		TextEncoding:      hdr.TextEncoding.String(),
		UserVersion:       hdr.UserVersion,
		ApplicationID:     hdr.ApplicationID,
		SQLiteVersion:     hdr.SQLiteVersion,
		WatchState:        h.session.WatchState().String(),
		Cache:             h.session.CacheStats(),
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
