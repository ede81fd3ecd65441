package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"imgshare-backend/internal/kvstore"
	"imgshare-backend/internal/models"
)

const quotaField = "quota"

func quotaHKey(username string) string {
	return fmt.Sprintf("users:%s:quota", username)
}

// QuotaLedger tracks the per-user file-count quota. The backing store has
// no compare-and-swap, so Increment is read-modify-write; callers that
// need the used<=max invariant verify after the write and compensate.
type QuotaLedger struct {
	kv         kvstore.Store
	defaultMax int

	// mu serializes read-modify-write within this process. Increments
	// from other processes still interleave freely; the caller's
	// post-commit recheck handles those.
	mu sync.Mutex
}

func NewQuotaLedger(kv kvstore.Store, defaultMax int) *QuotaLedger {
	return &QuotaLedger{kv: kv, defaultMax: defaultMax}
}

// Get returns the user's quota, defaulting to {defaultMax, 0} when the
// counter has never been written or contains junk.
func (l *QuotaLedger) Get(ctx context.Context, username string) (models.Quota, error) {
	raw, err := l.kv.Get(ctx, quotaHKey(username), quotaField)
	if errors.Is(err, kvstore.ErrNotFound) {
		return models.Quota{Max: l.defaultMax}, nil
	}
	if err != nil {
		return models.Quota{}, err
	}

	var q models.Quota
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return models.Quota{Max: l.defaultMax}, nil
	}
	return q, nil
}

func (l *QuotaLedger) Set(ctx context.Context, username string, q models.Quota) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, quotaHKey(username), quotaField, string(raw))
}

// Increment adjusts the usage counter by delta, clamping at zero, and
// returns the stored result.
func (l *QuotaLedger) Increment(ctx context.Context, username string, delta int) (models.Quota, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, err := l.Get(ctx, username)
	if err != nil {
		return models.Quota{}, err
	}

	q.Used += delta
	if q.Used < 0 {
		q.Used = 0
	}

	if err := l.Set(ctx, username, q); err != nil {
		return models.Quota{}, err
	}
	return q, nil
}

// Reset replaces the quota with {max, 0}.
func (l *QuotaLedger) Reset(ctx context.Context, username string, max int) error {
	return l.Set(ctx, username, models.Quota{Max: max})
}
