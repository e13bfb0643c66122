package repository

import (
	"bytes"
	"context"
	"testing"

	"github.com/asuran-archive/asuran/internal/backend/local"
	"github.com/asuran-archive/asuran/internal/chunk"
	"github.com/asuran-archive/asuran/internal/keys"
)

func testChunkKeys(t *testing.T) chunk.Keys {
	t.Helper()
	b, err := keys.GenerateBundle()
	if err != nil {
		t.Fatal(err)
	}
	return chunk.Keys{EncKey: b.EncKey[:], MacKey: b.MacKey[:], IDKey: b.IDKey[:]}
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	back, err := local.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { back.Close() })

	repo, err := New(back, testChunkKeys(t), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestWriteReadRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	plaintext := []byte("the data being backed up")
	id, err := repo.Write(ctx, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Read(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestWriteDeduplicatesWithinSession(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	plaintext := []byte("duplicate me")
	id1, err := repo.Write(ctx, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := repo.Write(ctx, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(id1, id2) {
		t.Fatal("expected identical plaintext to yield identical id")
	}

	// Only one index entry should have been staged.
	repo.stageMu.Lock()
	staged := len(repo.staged)
	repo.stageMu.Unlock()
	if staged != 1 {
		t.Fatalf("expected 1 staged index entry after deduped write, got %d", staged)
	}
}

func TestWriteDeduplicatesAcrossFlush(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	plaintext := bytes.Repeat([]byte{0x7a}, 4096)
	if _, err := repo.Write(ctx, plaintext); err != nil {
		t.Fatal(err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	// Fresh repository instance (simulating a new session) sharing the same
	// backend must see the chunk as already present via the backend index.
	repo2, err := New(repo.back, repo.keys, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	id, err := repo2.Write(ctx, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	repo2.stageMu.Lock()
	staged := len(repo2.staged)
	repo2.stageMu.Unlock()
	if staged != 0 {
		t.Fatalf("expected no new staged entries for already-indexed chunk, got %d", staged)
	}
	if len(id) == 0 {
		t.Fatal("expected a valid content id")
	}
}

func TestReadUnknownIDFails(t *testing.T) {
	repo := newTestRepository(t)
	if _, err := repo.Read(context.Background(), []byte("nonexistent")); err == nil {
		t.Fatal("expected read of unknown id to fail")
	}
}
