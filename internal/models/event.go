package models

const EventTypeUpload = "upload"

// UploadEvent is an append-only feed entry. Events are keyed by
// (timestamp, cid) in the store and are never mutated.
type UploadEvent struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Filename string `json:"filename"`
	CID      string `json:"cid"`

	NodeID    string `json:"node_id"`
	CreatedAt string `json:"created_at"` // RFC 3339
}
