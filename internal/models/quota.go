package models

// Quota caps the number of stored files per user. Used may transiently
// exceed Max while a racing upload is being rolled back.
type Quota struct {
	Max  int `json:"max"`
	Used int `json:"used"`
}

func (q Quota) Exceeded() bool {
	return q.Used > q.Max
}

func (q Quota) Full() bool {
	return q.Used >= q.Max
}
