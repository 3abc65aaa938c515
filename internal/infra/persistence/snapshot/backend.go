package snapshot

import "context"

// DocumentName is the storage key of the workshop document in every backend.
const DocumentName = "mechanicPro_db.json"

// Backend stores one serialised document with its revision.
type Backend interface {
	// Load returns the stored payload and revision, or domain.ErrNoDocument
	// when nothing has been saved yet.
	Load(ctx context.Context) ([]byte, int64, error)
	// Save replaces the stored payload with next as its revision, failing
	// with domain.ErrStaleRevision when the stored revision is not expected.
	Save(ctx context.Context, payload []byte, expected, next int64) error
	Close() error
}
