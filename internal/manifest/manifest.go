package manifest

import (
	"context"
	"fmt"
	"time"

	"github.com/asuran-archive/asuran/internal/backend"
)

// Entry pairs an archive id with the time it was committed, mirroring
// backend.StoredArchive but with a parsed timestamp for callers.
type Entry struct {
	ArchiveID []byte
	Timestamp time.Time
}

// Manifest is the append-only log of committed archives plus a derived
// last-modified time.
type Manifest struct {
	back backend.Backend
}

func Open(back backend.Backend) *Manifest {
	return &Manifest{back: back}
}

// List returns every stored archive entry in commit order.
func (m *Manifest) List(ctx context.Context) ([]Entry, error) {
	stored, err := m.back.ReadManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}
	out := make([]Entry, len(stored))
	for i, s := range stored {
		out[i] = Entry{ArchiveID: s.ArchiveID, Timestamp: time.Unix(0, s.Timestamp).UTC()}
	}
	return out, nil
}

// LastModified is the commit time of the most recently appended archive, or
// the zero time if the manifest is empty.
func (m *Manifest) LastModified(ctx context.Context) (time.Time, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if len(entries) == 0 {
		return time.Time{}, nil
	}
	latest := entries[0].Timestamp
	for _, e := range entries[1:] {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return latest, nil
}

// Commit writes an archive's serialized form as a chunk via repo, then
// appends its id to the manifest log. The manifest append is the single
// commit point: if Commit returns an error, the archive is not visible to
// any future read, even though its chunk data may already be on disk.
func (m *Manifest) Commit(ctx context.Context, repo chunkWriter, a *Archive) ([]byte, error) {
	archiveID, err := WriteArchive(ctx, repo, a)
	if err != nil {
		return nil, fmt.Errorf("manifest: write archive chunk: %w", err)
	}
	entry := backend.StoredArchive{ArchiveID: archiveID, Timestamp: time.Now().UnixNano()}
	if err := m.back.AppendManifest(ctx, entry); err != nil {
		return nil, fmt.Errorf("manifest: append: %w", err)
	}
	return archiveID, nil
}
