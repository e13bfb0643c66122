package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/asuran-archive/asuran/internal/backend/local"
	"github.com/asuran-archive/asuran/internal/chunk"
	"github.com/asuran-archive/asuran/internal/chunker"
	"github.com/asuran-archive/asuran/internal/keys"
	"github.com/asuran-archive/asuran/internal/manifest"
	"github.com/asuran-archive/asuran/internal/ratelimit"
	"github.com/asuran-archive/asuran/internal/repository"
)

func newTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	back, err := local.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { back.Close() })

	b, err := keys.GenerateBundle()
	if err != nil {
		t.Fatal(err)
	}
	repo, err := repository.New(back, chunk.Keys{EncKey: b.EncKey[:], MacKey: b.MacKey[:], IDKey: b.IDKey[:]}, repository.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestIngestObjectReassemblesInOrder(t *testing.T) {
	repo := newTestRepo(t)
	p := New(repo, Options{Workers: 4, QueueDepth: 8})

	data := bytes.Repeat([]byte("0123456789abcdef"), 8*1024) // 128 KiB, several chunks
	opts := chunker.Options{Kind: chunker.Static, Size: 16 * 1024}

	ctx := context.Background()
	list, err := p.IngestObject(ctx, bytes.NewReader(data), opts)
	if err != nil {
		t.Fatal(err)
	}
	if list.TotalLength() != int64(len(data)) {
		t.Fatalf("total length %d, want %d", list.TotalLength(), len(data))
	}

	var sink bytes.Buffer
	if err := list.WriteTo(ctx, repo, sinkWriter{&sink}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sink.Bytes(), data) {
		t.Fatal("reassembled object does not match original bytes")
	}
}

type sinkWriter struct{ buf *bytes.Buffer }

func (s sinkWriter) Write(p []byte) (int, error) { return s.buf.Write(p) }

func TestIngestObjectEmptyInput(t *testing.T) {
	repo := newTestRepo(t)
	p := New(repo, DefaultOptions())

	opts := chunker.Options{Kind: chunker.Static, Size: 4096}
	list, err := p.IngestObject(context.Background(), bytes.NewReader(nil), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty chunk list, got %d entries", len(list))
	}
}

type failingWriter struct{ calls int }

func (f *failingWriter) Write(ctx context.Context, plaintext []byte) ([]byte, error) {
	f.calls++
	if f.calls == 2 {
		return nil, errors.New("simulated backend failure")
	}
	return []byte("id"), nil
}

func TestIngestObjectPropagatesWorkerError(t *testing.T) {
	fw := &failingWriter{}
	p := New(fw, Options{Workers: 2, QueueDepth: 2})

	data := bytes.Repeat([]byte("x"), 64*1024)
	opts := chunker.Options{Kind: chunker.Static, Size: 4096}

	_, err := p.IngestObject(context.Background(), bytes.NewReader(data), opts)
	if err == nil {
		t.Fatal("expected error to propagate from a failing worker")
	}
}

func TestIngestObjectRespectsLimiter(t *testing.T) {
	repo := newTestRepo(t)
	p := New(repo, Options{Workers: 2, QueueDepth: 4, Limiter: ratelimit.NewTokenBucket(1_000_000, 1_000_000)})

	data := bytes.Repeat([]byte("y"), 32*1024)
	opts := chunker.Options{Kind: chunker.Static, Size: 4096}

	list, err := p.IngestObject(context.Background(), bytes.NewReader(data), opts)
	if err != nil {
		t.Fatal(err)
	}
	if list.TotalLength() != int64(len(data)) {
		t.Fatalf("total length %d, want %d", list.TotalLength(), len(data))
	}
}

var _ manifest.ObjectSink = sinkWriter{}
