package models

// FileRecord is the metadata kept for every stored blob. CID is the
// content id assigned by the blob store and doubles as the record key.
type FileRecord struct {
	CID      string `json:"cid"`
	Owner    string `json:"owner"`
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	Size     int64  `json:"size"`

	CreatedAt string `json:"created_at"` // RFC 3339
	NodeID    string `json:"node_id"`
}
