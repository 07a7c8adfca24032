package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rmax-ai/restock/pkg/blob"
	"github.com/rmax-ai/restock/pkg/logger"
)

const (
	snapshotPrefix        = "snapshots"
	snapshotSchemaVersion = 1

	DefaultSnapshotInterval = 24 * time.Hour
	DefaultSnapshotKeep     = 7
)

// ErrNoSnapshot is returned when a restore finds nothing to restore from.
var ErrNoSnapshot = errors.New("no snapshot found")

// SnapshotPayload is the JSON document written for each snapshot.
type SnapshotPayload struct {
	SchemaVersion int       `json:"schema_version"`
	TakenAt       time.Time `json:"taken_at"`
	Items         []Item    `json:"items"`
}

// SnapshotWorker periodically copies every item into a blob store and keeps
// the newest few copies.
type SnapshotWorker struct {
	store    ItemStore
	blobs    blob.BlobStore
	interval time.Duration
	keep     int
	log      *logger.Logger
	now      func() time.Time
}

// NewSnapshotWorker creates a new worker
func NewSnapshotWorker(store ItemStore, blobs blob.BlobStore, interval time.Duration, keep int) *SnapshotWorker {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	if keep <= 0 {
		keep = DefaultSnapshotKeep
	}
	return &SnapshotWorker{
		store:    store,
		blobs:    blobs,
		interval: interval,
		keep:     keep,
		log:      logger.Nop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the worker logger.
func (w *SnapshotWorker) SetLogger(l *logger.Logger) {
	if l != nil {
		w.log = l
	}
}

// SetClock overrides the time source used for snapshot keys.
func (w *SnapshotWorker) SetClock(now func() time.Time) {
	w.now = now
}

// Run starts the snapshot loop
func (w *SnapshotWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Infow("snapshot_worker_started", "interval", w.interval.String(), "keep", w.keep)

	for {
		select {
		case <-ctx.Done():
			w.log.Infow("snapshot_worker_stopped")
			return
		case <-ticker.C:
			key, err := w.TakeSnapshot(ctx)
			if err != nil {
				RestockSnapshotTotal.WithLabelValues("failed").Inc()
				w.log.Errorw("snapshot_failed", "error", err)
				continue
			}
			RestockSnapshotTotal.WithLabelValues("created").Inc()
			w.log.Infow("snapshot_created", "key", key)
		}
	}
}

// TakeSnapshot writes all items to a new blob and prunes old snapshots. It
// returns the new key.
func (w *SnapshotWorker) TakeSnapshot(ctx context.Context) (string, error) {
	items, err := w.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list items: %w", err)
	}

	now := w.now()
	payload := SnapshotPayload{
		SchemaVersion: snapshotSchemaVersion,
		TakenAt:       now,
		Items:         items,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot payload: %w", err)
	}

	// Zero-padded so lexical order is chronological.
	key := fmt.Sprintf("%s/items-%020d.json", snapshotPrefix, now.UnixNano())
	if err := w.blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("blob put failed: %w", err)
	}

	if err := w.prune(ctx); err != nil {
		w.log.Warnw("snapshot_prune_failed", "error", err)
	}
	return key, nil
}

func (w *SnapshotWorker) prune(ctx context.Context) error {
	keys, err := snapshotKeys(ctx, w.blobs)
	if err != nil {
		return err
	}
	for len(keys) > w.keep {
		if err := w.blobs.Delete(ctx, keys[0]); err != nil && !errors.Is(err, blob.ErrNotFound) {
			return err
		}
		w.log.Debugw("snapshot_pruned", "key", keys[0])
		keys = keys[1:]
	}
	return nil
}

func snapshotKeys(ctx context.Context, blobs blob.BlobStore) ([]string, error) {
	all, err := blobs.List(ctx, snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, snapshotPrefix+"/items-") && strings.HasSuffix(k, ".json") {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// LatestSnapshot returns the key of the newest snapshot.
func LatestSnapshot(ctx context.Context, blobs blob.BlobStore) (string, error) {
	keys, err := snapshotKeys(ctx, blobs)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", ErrNoSnapshot
	}
	return keys[len(keys)-1], nil
}

// RestoreSnapshot recreates the items of a snapshot that are missing from
// store. Items that already exist are left alone. It returns how many items
// were restored.
func RestoreSnapshot(ctx context.Context, blobs blob.BlobStore, key string, store ItemStore) (int, error) {
	r, err := blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrNoSnapshot, key)
		}
		return 0, err
	}
	defer r.Close()

	var payload SnapshotPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to unmarshal snapshot payload: %w", err)
	}
	if payload.SchemaVersion != snapshotSchemaVersion {
		return 0, fmt.Errorf("unsupported snapshot schema version %d", payload.SchemaVersion)
	}

	restored := 0
	for _, item := range payload.Items {
		if err := store.Create(ctx, item); err != nil {
			if errors.Is(err, ErrItemExists) {
				continue
			}
			return restored, fmt.Errorf("failed to restore item %s: %w", item.ID, err)
		}
		restored++
	}
	return restored, nil
}
