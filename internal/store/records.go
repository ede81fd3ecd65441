// Package store persists file metadata, the upload-event feed and the
// per-user quota in the key-value store. Deletions are tombstones: the
// backing store has no delete, so removed entries are overwritten with an
// empty value and filtered out on read.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"imgshare-backend/internal/kvstore"
	"imgshare-backend/internal/models"
)

const (
	filesHKey  = "files"
	eventsHKey = "events"
)

var ErrRecordNotFound = errors.New("store: file record not found")

type RecordStore struct {
	kv kvstore.Store

	// nowMillis feeds event keys; overridable in tests.
	nowMillis func() int64
}

func NewRecordStore(kv kvstore.Store) *RecordStore {
	return &RecordStore{
		kv:        kv,
		nowMillis: func() int64 { return time.Now().UnixMilli() },
	}
}

// storedRecord is a FileRecord minus the CID, which is the hash key.
type storedRecord struct {
	Owner     string `json:"owner"`
	Filename  string `json:"filename"`
	Mime      string `json:"mime"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
	NodeID    string `json:"node_id"`
}

func (r *RecordStore) Save(ctx context.Context, rec models.FileRecord) error {
	raw, err := json.Marshal(storedRecord{
		Owner:     rec.Owner,
		Filename:  rec.Filename,
		Mime:      rec.Mime,
		Size:      rec.Size,
		CreatedAt: rec.CreatedAt,
		NodeID:    rec.NodeID,
	})
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, filesHKey, rec.CID, string(raw))
}

func (r *RecordStore) Get(ctx context.Context, cid string) (models.FileRecord, error) {
	raw, err := r.kv.Get(ctx, filesHKey, cid)
	if errors.Is(err, kvstore.ErrNotFound) || (err == nil && raw == "") {
		return models.FileRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return models.FileRecord{}, err
	}

	var sr storedRecord
	if err := json.Unmarshal([]byte(raw), &sr); err != nil {
		return models.FileRecord{}, ErrRecordNotFound
	}
	return fromStored(cid, sr), nil
}

// List returns every live record, newest first.
func (r *RecordStore) List(ctx context.Context) ([]models.FileRecord, error) {
	all, err := r.kv.GetAll(ctx, filesHKey)
	if err != nil {
		return nil, err
	}

	records := make([]models.FileRecord, 0, len(all))
	for cid, raw := range all {
		if raw == "" {
			continue // tombstone
		}
		var sr storedRecord
		if err := json.Unmarshal([]byte(raw), &sr); err != nil {
			continue
		}
		records = append(records, fromStored(cid, sr))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
	return records, nil
}

func (r *RecordStore) ListByOwner(ctx context.Context, owner string) ([]models.FileRecord, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	owned := make([]models.FileRecord, 0)
	for _, rec := range all {
		if rec.Owner == owner {
			owned = append(owned, rec)
		}
	}
	return owned, nil
}

// Remove tombstones the record.
func (r *RecordStore) Remove(ctx context.Context, cid string) error {
	return r.kv.Set(ctx, filesHKey, cid, "")
}

// AddEvent appends an upload event keyed by (timestamp, cid) so that
// concurrent writers cannot clobber each other's entries.
func (r *RecordStore) AddEvent(ctx context.Context, ev models.UploadEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%d:%s", r.nowMillis(), ev.CID)
	return r.kv.Set(ctx, eventsHKey, key, string(raw))
}

// ListEvents returns up to limit events, newest first.
func (r *RecordStore) ListEvents(ctx context.Context, limit int) ([]models.UploadEvent, error) {
	all, err := r.kv.GetAll(ctx, eventsHKey)
	if err != nil {
		return nil, err
	}

	events := make([]models.UploadEvent, 0, len(all))
	for _, raw := range all {
		if raw == "" {
			continue
		}
		var ev models.UploadEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt > events[j].CreatedAt
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// RemoveEventsForUser tombstones every event a user produced.
func (r *RecordStore) RemoveEventsForUser(ctx context.Context, username string) error {
	all, err := r.kv.GetAll(ctx, eventsHKey)
	if err != nil {
		return err
	}

	for key, raw := range all {
		if raw == "" {
			continue
		}
		var ev models.UploadEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		if ev.User != username {
			continue
		}
		if err := r.kv.Set(ctx, eventsHKey, key, ""); err != nil {
			return err
		}
	}
	return nil
}

func fromStored(cid string, sr storedRecord) models.FileRecord {
	return models.FileRecord{
		CID:       cid,
		Owner:     sr.Owner,
		Filename:  sr.Filename,
		Mime:      sr.Mime,
		Size:      sr.Size,
		CreatedAt: sr.CreatedAt,
		NodeID:    sr.NodeID,
	}
}
