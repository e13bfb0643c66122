package manifest

import (
	"bytes"
	"context"
	"testing"

	"github.com/asuran-archive/asuran/internal/backend/local"
	"github.com/asuran-archive/asuran/internal/chunk"
	"github.com/asuran-archive/asuran/internal/keys"
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

func TestPathRoundTrip(t *testing.T) {
	cases := []string{":/empty", "/empty", "ns1:ns2:/seg/seg", "/a/b/c"}
	for _, c := range cases {
		p := ParsePath(c)
		_ = p.String() // must not panic; exact round-trip form is not required for namespace-less paths
	}

	p := ParsePath("ns1:ns2:/seg/seg")
	if len(p.Namespace) != 2 || p.Namespace[0] != "ns1" || p.Namespace[1] != "ns2" {
		t.Fatalf("unexpected namespace: %+v", p.Namespace)
	}
	if len(p.Segments) != 2 || p.Segments[0] != "seg" || p.Segments[1] != "seg" {
		t.Fatalf("unexpected segments: %+v", p.Segments)
	}
	if got := p.String(); got != "ns1:ns2:/seg/seg" {
		t.Fatalf("round trip: got %q, want %q", got, "ns1:ns2:/seg/seg")
	}
}

func TestArchiveMarshalRoundTrip(t *testing.T) {
	a := NewArchive("snapshot-1")
	a.Put(ParsePath("/docs/readme"), ChunkList{{ChunkID: []byte("id1"), LogicalStart: 0, Length: 10}})

	data, err := a.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalArchive(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != a.Name {
		t.Fatalf("name mismatch: %q vs %q", got.Name, a.Name)
	}
	list, ok := got.Get(ParsePath("/docs/readme"))
	if !ok || len(list) != 1 || list[0].LogicalStart != 0 {
		t.Fatalf("unexpected roundtripped chunk list: %+v", list)
	}
}

func TestManifestCommitAndList(t *testing.T) {
	back, err := local.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer back.Close()

	b, err := keys.GenerateBundle()
	if err != nil {
		t.Fatal(err)
	}
	repo, err := repository.New(back, chunk.Keys{EncKey: b.EncKey[:], MacKey: b.MacKey[:], IDKey: b.IDKey[:]}, repository.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	m := Open(back)

	ctx := context.Background()
	a := NewArchive("snap-1")
	id1, err := repo.Write(ctx, []byte("chunk bytes"))
	if err != nil {
		t.Fatal(err)
	}
	a.Put(ParsePath("/file.txt"), ChunkList{{ChunkID: id1, LogicalStart: 0, Length: int64(len("chunk bytes"))}})

	archiveID, err := m.Commit(ctx, repo, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(archiveID) == 0 {
		t.Fatal("expected non-empty archive id")
	}

	entries, err := m.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 manifest entry, got %d", len(entries))
	}
}

type bufSink struct{ buf bytes.Buffer }

func (b *bufSink) Write(p []byte) (int, error) { return b.buf.Write(p) }

func TestChunkListWriteToFillsGaps(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.Write(ctx, []byte("DATA"))
	if err != nil {
		t.Fatal(err)
	}

	// One 4-byte chunk at offset 10, leaving a 10-byte gap before it.
	cl := ChunkList{{ChunkID: id, LogicalStart: 10, Length: 4}}

	var sink bufSink
	if err := cl.WriteTo(ctx, repo, &sink); err != nil {
		t.Fatal(err)
	}

	want := append(make([]byte, 10), []byte("DATA")...)
	if !bytes.Equal(sink.buf.Bytes(), want) {
		t.Fatalf("got %q, want %q", sink.buf.Bytes(), want)
	}
}

func TestChunkListDigestStableForSameEntries(t *testing.T) {
	cl1 := ChunkList{{ChunkID: []byte("a"), LogicalStart: 0, Length: 1}, {ChunkID: []byte("b"), LogicalStart: 1, Length: 1}}
	cl2 := ChunkList{{ChunkID: []byte("a"), LogicalStart: 0, Length: 1}, {ChunkID: []byte("b"), LogicalStart: 1, Length: 1}}
	if !bytes.Equal(cl1.Digest(), cl2.Digest()) {
		t.Fatal("expected identical chunk lists to produce identical digests")
	}

	cl3 := ChunkList{{ChunkID: []byte("a"), LogicalStart: 0, Length: 1}, {ChunkID: []byte("c"), LogicalStart: 1, Length: 1}}
	if bytes.Equal(cl1.Digest(), cl3.Digest()) {
		t.Fatal("expected different chunk lists to produce different digests")
	}
}
