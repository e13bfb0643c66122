// Package backend defines the storage contract a repository writes chunks,
// index records, and the manifest through. Concrete backends (local
// filesystem, erasure-coded, remote) implement Backend.
package backend

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("backend: chunk not found")
	ErrCorrupt   = errors.New("backend: corrupt read (framing/crc mismatch)")
	ErrLocked    = errors.New("backend: repository is locked by another process")
	ErrWriteLock = errors.New("backend: write requires the write lock")
)

// IndexEntry locates a chunk's envelope within a segment.
type IndexEntry struct {
	SegmentNo uint64
	Offset    uint64
	Length    uint32
}

// IndexBatch is a transactional set of index entries committed atomically.
// Recovery after a partial write replays only complete batches.
type IndexBatch struct {
	Entries map[string]IndexEntry // keyed by ChunkId encoded as a string
}

// StoredArchive is a manifest row: an archive chunk id plus the time it was
// committed.
type StoredArchive struct {
	ArchiveID []byte
	Timestamp int64 // unix nanoseconds
}

// Lock is a held advisory lock; Release gives it up. Implementations detect
// stale locks left by a dead process (e.g. via PID liveness) and steal them.
type Lock interface {
	Release() error
}

// Backend is the storage contract. All methods must be safe for concurrent
// use by a single repository instance; cross-process concurrency is
// arbitrated by TakeWriteLock/TakeReadLock.
type Backend interface {
	// ReadChunk returns the raw serialized envelope stored under id.
	ReadChunk(ctx context.Context, id []byte) ([]byte, error)
	// WriteChunk appends envelope to the current writable segment, rolling
	// over to a new segment if the byte cap is reached, and returns its
	// location.
	WriteChunk(ctx context.Context, id, envelope []byte) (IndexEntry, error)

	// LookupIndex resolves a chunk id to its location, or ErrNotFound.
	LookupIndex(ctx context.Context, id []byte) (IndexEntry, error)
	// CommitIndex durably appends a batch of index entries as one atomic
	// transaction record.
	CommitIndex(ctx context.Context, batch IndexBatch) error

	// ReadManifest returns the full ordered list of stored archives.
	ReadManifest(ctx context.Context) ([]StoredArchive, error)
	// AppendManifest appends one archive entry to the manifest log.
	AppendManifest(ctx context.Context, entry StoredArchive) error

	// TakeWriteLock acquires the exclusive write lock, stealing a stale
	// lock left by a dead process. Blocks until ctx is done or the lock is
	// acquired.
	TakeWriteLock(ctx context.Context) (Lock, error)
	// TakeReadLock acquires a shared read lock.
	TakeReadLock(ctx context.Context) (Lock, error)

	Close() error
}
