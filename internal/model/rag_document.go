package model

type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// DocumentMeta is keyed by (UserID, Filename). Filename is the name the user uploaded,
// StoredKey the key of the raw file inside the file store.
type DocumentMeta struct {
	UserID     string         `json:"user_id"`
	Filename   string         `json:"original_name"`
	StoredKey  string         `json:"stored_key,omitempty"`
	ChunkCount int            `json:"chunks"`
	IndexSize  int            `json:"embedding_count"`
	Status     DocumentStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	Ctime      int64          `json:"ctime"`
	Mtime      int64          `json:"mtime"`
}
