package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV.Get for an absent key.
var ErrNotFound = errors.New("not found")

// KV is the durable key-value backing store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// PendingRequest is a scheduled notification owned by the local notification center.
// Content is opaque to the store.
type PendingRequest struct {
	Identifier string
	Content    []byte
	Cron       string // empty for a one-shot request
	NextFireAt time.Time
}

// OneShot reports whether the request is deleted after its first delivery.
func (p PendingRequest) OneShot() bool { return p.Cron == "" }

// PendingRepo defines storage operations for pending notification requests.
type PendingRepo interface {
	UpsertPending(ctx context.Context, p PendingRequest) error
	ListPendingIDs(ctx context.Context) ([]string, error)
	DeletePending(ctx context.Context, ids []string) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]PendingRequest, error)
	SetNextFire(ctx context.Context, id string, next time.Time) error
}
