package erasure

import (
	"context"
	"testing"

	"github.com/asuran-archive/asuran/internal/backend"
	"github.com/asuran-archive/asuran/internal/backend/local"
)

func newTestErasureBackend(t *testing.T, k, r int) *Backend {
	t.Helper()
	shards := make([]backend.Backend, k+r)
	for i := range shards {
		b, err := local.Open(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		shards[i] = b
	}
	eb, err := New(k, r, shards)
	if err != nil {
		t.Fatal(err)
	}
	return eb
}

func TestErasureRoundTrip(t *testing.T) {
	eb := newTestErasureBackend(t, 4, 2)
	defer eb.Close()

	ctx := context.Background()
	id := []byte("chunk-1")
	envelope := []byte("this is the envelope payload, not a multiple of k in length")

	entry, err := eb.WriteChunk(ctx, id, envelope)
	if err != nil {
		t.Fatal(err)
	}
	if err := eb.CommitIndex(ctx, backend.IndexBatch{Entries: map[string]backend.IndexEntry{string(id): entry}}); err != nil {
		t.Fatal(err)
	}
	got, err := eb.ReadChunk(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(envelope) {
		t.Fatalf("got %q, want %q", got, envelope)
	}
}

func TestErasureRecoversFromMissingShards(t *testing.T) {
	k, r := 4, 2
	shards := make([]backend.Backend, k+r)
	locals := make([]*local.Backend, k+r)
	for i := range shards {
		lb, err := local.Open(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		locals[i] = lb
		shards[i] = lb
	}
	eb, err := New(k, r, shards)
	if err != nil {
		t.Fatal(err)
	}
	defer eb.Close()

	ctx := context.Background()
	id := []byte("chunk-2")
	envelope := []byte("recoverable payload across a lossy fleet of shard backends")
	entry, err := eb.WriteChunk(ctx, id, envelope)
	if err != nil {
		t.Fatal(err)
	}
	if err := eb.CommitIndex(ctx, backend.IndexBatch{Entries: map[string]backend.IndexEntry{string(id): entry}}); err != nil {
		t.Fatal(err)
	}

	// Close two shards (== r) to simulate lost disks; reads must still
	// succeed via reconstruction.
	locals[0].Close()
	locals[1].Close()
	// Swap in backends pointed at empty directories so ReadChunk on them
	// returns ErrNotFound rather than reusing a closed handle.
	empty0, err := local.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	empty1, err := local.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	eb.shards[0] = empty0
	eb.shards[1] = empty1

	got, err := eb.ReadChunk(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(envelope) {
		t.Fatalf("got %q, want %q", got, envelope)
	}
}

func TestErasureTooManyMissingShardsFails(t *testing.T) {
	k, r := 4, 2
	shards := make([]backend.Backend, k+r)
	locals := make([]*local.Backend, k+r)
	for i := range shards {
		lb, err := local.Open(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		locals[i] = lb
		shards[i] = lb
	}
	eb, err := New(k, r, shards)
	if err != nil {
		t.Fatal(err)
	}
	defer eb.Close()

	ctx := context.Background()
	id := []byte("chunk-3")
	entry, err := eb.WriteChunk(ctx, id, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if err := eb.CommitIndex(ctx, backend.IndexBatch{Entries: map[string]backend.IndexEntry{string(id): entry}}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ { // r+1 missing shards: unrecoverable
		empty, err := local.Open(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		eb.shards[i] = empty
	}

	if _, err := eb.ReadChunk(ctx, id); err == nil {
		t.Fatal("expected read to fail with more missing shards than r")
	}
}
