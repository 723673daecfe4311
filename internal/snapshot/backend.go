// Package snapshot implements whole-relation backup and restore against a
// pluggable object store, per spec.md's snapshot facility: every page is
// packed into one blob per snapshot, addressed by a uuid and checked with a
// blake2b-256 digest, and can be pushed to or pulled from local disk, S3,
// GCS, or Azure Blob Storage.
//
// Grounded on the teacher's internal/storage package: the same
// Get/Put/Exists/List shape as storage.Backend, trimmed to the handful of
// operations a snapshot blob needs (no per-object metadata sidecar, no
// presigned URLs) since this package addresses whole index dumps, not
// arbitrary small objects.
package snapshot

import "context"

// Backend stores and retrieves opaque snapshot blobs by key. Implementations
// must treat Put as an overwrite and Get on a missing key as ErrNotFound.
type Backend interface {
	// Put writes data under key, replacing any existing blob.
	Put(ctx context.Context, key string, data []byte) error
	// Get reads the blob stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether key has a blob.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes key's blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every key with the given prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Type identifies the backend kind, for logging and manifests.
	Type() string
}
