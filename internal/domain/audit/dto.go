package audit

import "time"

// ExportRequest selects the ledger window to archive
type ExportRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required"`
}

// ExportResponse names the written archive object
type ExportResponse struct {
	Key     string `json:"key"`
	Entries int    `json:"entries"`
}

// ChangesResponse is one long-poll batch
type ChangesResponse struct {
	Entries []*Entry `json:"entries"`
	Cursor  string   `json:"cursor"`
}
