package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"probikes/internal/blob"
	"probikes/pkg/domain"
)

const revisionMetadataKey = "revision"

// BlobBackend keeps the document as a single object in a blob store. The
// revision travels in object metadata; objects written by older tools without
// metadata fall back to the revision inside the payload. The revision check
// is serialised per process; object stores offer no conditional overwrite
// across processes here.
type BlobBackend struct {
	store blob.Store
	key   string
	mu    sync.Mutex
}

// NewBlobBackend stores the document under key, or DocumentName when empty.
func NewBlobBackend(store blob.Store, key string) *BlobBackend {
	if key == "" {
		key = DocumentName
	}
	return &BlobBackend{store: store, key: key}
}

// Key returns the object key of the document.
func (b *BlobBackend) Key() string { return b.key }

// Load reads the object.
func (b *BlobBackend) Load(ctx context.Context) ([]byte, int64, error) {
	info, rc, err := b.store.Get(ctx, b.key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, 0, domain.ErrNoDocument
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", b.key, err)
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", b.key, err)
	}
	return payload, revisionOf(info, payload), nil
}

// Save overwrites the object after checking the stored revision.
func (b *BlobBackend) Save(ctx context.Context, payload []byte, expected, next int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, err := b.currentRevision(ctx)
	if err != nil {
		return err
	}
	if current != expected {
		return fmt.Errorf("%w: stored %d, expected %d", domain.ErrStaleRevision, current, expected)
	}
	_, err = b.store.Put(ctx, b.key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{revisionMetadataKey: strconv.FormatInt(next, 10)},
		Overwrite:   true,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", b.key, err)
	}
	return nil
}

// Close is a no-op; the blob store is owned by the caller.
func (b *BlobBackend) Close() error { return nil }

func (b *BlobBackend) currentRevision(ctx context.Context) (int64, error) {
	info, err := b.store.Head(ctx, b.key)
	if errors.Is(err, blob.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", b.key, err)
	}
	if rev, ok := metadataRevision(info); ok {
		return rev, nil
	}
	_, rev, err := b.Load(ctx)
	if errors.Is(err, domain.ErrNoDocument) {
		return 0, nil
	}
	return rev, err
}

func revisionOf(info blob.Info, payload []byte) int64 {
	if rev, ok := metadataRevision(info); ok {
		return rev
	}
	return PeekRevision(payload)
}

func metadataRevision(info blob.Info) (int64, bool) {
	raw, ok := info.Metadata[revisionMetadataKey]
	if !ok {
		return 0, false
	}
	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return rev, true
}
