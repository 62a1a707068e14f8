package models

// SyncStatus is the externally observable state of the sync engine.
type SyncStatus string

const (
	StatusIdle     SyncStatus = "IDLE"
	StatusSyncing  SyncStatus = "SYNCING"
	StatusSuccess  SyncStatus = "SUCCESS"
	StatusFailed   SyncStatus = "FAILED"
	StatusConflict SyncStatus = "CONFLICT"
)

// ConflictType classifies how the two sides of a conflict disagree.
type ConflictType string

const (
	// UpdateConflict: both sides modified the entity since the last watermark.
	UpdateConflict ConflictType = "UPDATE_CONFLICT"
	// DeleteConflict: one side deleted while the other side modified.
	DeleteConflict ConflictType = "DELETE_CONFLICT"
)

// Resolution says which copy of a conflicted entity was kept.
type Resolution string

const (
	UseLocal  Resolution = "USE_LOCAL"
	UseServer Resolution = "USE_SERVER"
)

// SyncConflict is a transient value describing one detected (and resolved)
// conflict. It is reported in the cycle's result and never persisted.
type SyncConflict struct {
	EntityType      EntityType   `json:"entityType"`
	EntityID        string       `json:"entityId"`
	ConflictType    ConflictType `json:"conflictType"`
	LocalTimestamp  int64        `json:"localTimestamp"`
	ServerTimestamp int64        `json:"serverTimestamp"`
	Resolution      Resolution   `json:"resolution"`
}

// FailedItem is a ledger entry whose upload failed permanently during a
// cycle. It is surfaced for diagnostics and never retried automatically.
type FailedItem struct {
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	Operation  Operation  `json:"operation"`
	Error      string     `json:"error"`
}

// UploadResult summarizes the upload phase of one cycle.
type UploadResult struct {
	Total       int          `json:"total"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	FailedItems []FailedItem `json:"failedItems,omitempty"`
}

// DownloadResult summarizes the download phase of one cycle.
type DownloadResult struct {
	Total     int            `json:"total"`
	New       int            `json:"new"`
	Updated   int            `json:"updated"`
	Conflicts []SyncConflict `json:"conflicts,omitempty"`
}

// SyncResult is the outcome of one full sync cycle, returned to the caller.
type SyncResult struct {
	Success  bool           `json:"success"`
	Deferred bool           `json:"deferred"` // network unavailable, nothing attempted
	Upload   UploadResult   `json:"uploadResult"`
	Download DownloadResult `json:"downloadResult"`
	Error    string         `json:"error,omitempty"`
}
