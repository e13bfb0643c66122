package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/asuran-archive/asuran/internal/backend"
)

func TestWriteReadChunkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	id := []byte("chunk-id-1")
	envelope := []byte("an envelope's worth of ciphertext")

	entry, err := b.WriteChunk(ctx, id, envelope)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.CommitIndex(ctx, backend.IndexBatch{Entries: map[string]backend.IndexEntry{string(id): entry}}); err != nil {
		t.Fatal(err)
	}

	got, err := b.ReadChunk(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(envelope) {
		t.Fatalf("got %q, want %q", got, envelope)
	}
}

func TestReadChunkNotFound(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, err := b.ReadChunk(context.Background(), []byte("missing")); err != backend.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSegmentRollover(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	b.segmentCap = 64 // force rollover quickly
	b.current.cap = 64

	ctx := context.Background()
	envelope := make([]byte, 40)
	var lastSeg uint64
	for i := 0; i < 5; i++ {
		entry, err := b.WriteChunk(ctx, []byte{byte(i)}, envelope)
		if err != nil {
			t.Fatal(err)
		}
		lastSeg = entry.SegmentNo
	}
	if lastSeg == 0 {
		t.Fatal("expected segment rollover to have occurred")
	}
}

func TestIndexLogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	id := []byte("persisted-id")
	entry, err := b.WriteChunk(ctx, id, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.CommitIndex(ctx, backend.IndexBatch{Entries: map[string]backend.IndexEntry{string(id): entry}}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulate the in-process cache never having existed by deleting it;
	// reopening must rebuild it from the index log.
	if err := os.Remove(filepath.Join(dir, "index.db")); err != nil {
		t.Fatal(err)
	}

	b2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()

	got, err := b2.LookupIndex(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got != entry {
		t.Fatalf("got %+v, want %+v", got, entry)
	}
}

func TestManifestAppendAndRead(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	want := []backend.StoredArchive{
		{ArchiveID: []byte("archive-1"), Timestamp: 100},
		{ArchiveID: []byte("archive-2"), Timestamp: 200},
	}
	for _, a := range want {
		if err := b.AppendManifest(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := b.ReadManifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i].ArchiveID) != string(want[i].ArchiveID) || got[i].Timestamp != want[i].Timestamp {
			t.Fatalf("entry %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWriteLockExclusive(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	lock, err := b.TakeWriteLock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if _, err := b.TakeWriteLock(ctx); err == nil {
		t.Fatal("expected second write lock acquisition to fail while held")
	}
}

func TestTruncatedSegmentRecordIsDropped(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := b.WriteChunk(ctx, []byte("id"), []byte("good record")); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	segPath := segmentPath(filepath.Join(dir, "segments"), 0)
	f, err := os.OpenFile(segPath, os.O_RDWR, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	// Append a few stray bytes simulating a crash mid-write of the next record.
	if _, err := f.WriteAt([]byte{1, 2, 3}, info.Size()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	b2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()

	// The recovered segment must still be appendable and the good record
	// must still be at its original offset.
	entry, err := b2.WriteChunk(ctx, []byte("id2"), []byte("second record"))
	if err != nil {
		t.Fatal(err)
	}
	if entry.Offset != uint64(4+len("good record")+4) {
		t.Fatalf("expected recovery to truncate stray bytes, got offset %d", entry.Offset)
	}
}
