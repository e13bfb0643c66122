package verify

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/asuran-archive/asuran/internal/backend/local"
	"github.com/asuran-archive/asuran/internal/chunk"
	"github.com/asuran-archive/asuran/internal/keys"
	"github.com/asuran-archive/asuran/internal/manifest"
	"github.com/asuran-archive/asuran/internal/repository"
)

// segmentFileFor returns the path of a segment file in back's directory,
// assuming every chunk written so far went into a single segment.
func segmentFileFor(t *testing.T, back *local.Backend) string {
	t.Helper()
	dir := filepath.Join(back.Dir(), "segments")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".seg" {
			return filepath.Join(dir, e.Name())
		}
	}
	t.Fatal("no segment file found")
	return ""
}

// corruptByte flips the last byte of the file, which is part of the CRC32
// trailer of the last record written, so reading that record fails its
// CRC check.
func corruptByte(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 20 {
		t.Fatalf("segment file too small to corrupt: %d bytes", len(data))
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func testSetup(t *testing.T) (back *local.Backend, repo *repository.Repository, ck chunk.Keys) {
	t.Helper()
	var err error
	back, err = local.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { back.Close() })

	b, err := keys.GenerateBundle()
	if err != nil {
		t.Fatal(err)
	}
	ck = chunk.Keys{EncKey: b.EncKey[:], MacKey: b.MacKey[:], IDKey: b.IDKey[:]}
	repo, err = repository.New(back, ck, repository.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return back, repo, ck
}

func commitOneArchive(t *testing.T, ctx context.Context, back *local.Backend, repo *repository.Repository) []byte {
	t.Helper()
	id, err := repo.Write(ctx, []byte("object bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	a := manifest.NewArchive("snap")
	a.Put(manifest.ParsePath("/file"), manifest.ChunkList{{ChunkID: id, LogicalStart: 0, Length: int64(len("object bytes"))}})
	m := manifest.Open(back)
	archiveID, err := m.Commit(ctx, repo, a)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	return archiveID
}

func TestVerifyCleanRepository(t *testing.T) {
	back, repo, ck := testSetup(t)
	ctx := context.Background()
	commitOneArchive(t, ctx, back, repo)

	v := New(back, ck)
	report, err := v.Run(ctx, Options{VerifyID: true})
	if err != nil {
		t.Fatal(err)
	}
	if report.MissingCount != 0 || report.CorruptCount != 0 {
		t.Fatalf("expected clean report, got %+v", report)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 verified chunk, got %d", len(report.Results))
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	back, repo, ck := testSetup(t)
	ctx := context.Background()
	commitOneArchive(t, ctx, back, repo)

	// Flip a byte in the only segment file to simulate bit rot.
	segPath := segmentFileFor(t, back)
	corruptByte(t, segPath)

	v := New(back, ck)
	report, err := v.Run(ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.CorruptCount == 0 {
		t.Fatal("expected corruption to be detected")
	}
}

func TestSignAndVerifyReport(t *testing.T) {
	back, repo, ck := testSetup(t)
	ctx := context.Background()
	commitOneArchive(t, ctx, back, repo)

	v := New(back, ck)
	report, err := v.Run(ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Sign(report, priv); err != nil {
		t.Fatal(err)
	}
	if !VerifySignature(report) {
		t.Fatal("expected valid signature to verify")
	}
	_ = pub

	report.Results[0].Detail = "tampered"
	if VerifySignature(report) {
		t.Fatal("expected signature verification to fail after tampering")
	}
}
