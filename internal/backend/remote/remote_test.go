package remote

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/asuran-archive/asuran/internal/backend"
	"github.com/asuran-archive/asuran/internal/backend/local"
	"github.com/asuran-archive/asuran/internal/quicutil"
)

func TestRemoteBackendRoundTrip(t *testing.T) {
	certPEM, keyPEM, err := quicutil.GenerateSelfSignedCert()
	if err != nil {
		t.Fatal(err)
	}
	serverTLS, err := quicutil.MakeTLSConfig(certPEM, keyPEM)
	if err != nil {
		t.Fatal(err)
	}

	underlying, err := local.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer underlying.Close()

	srv := NewServer(underlying, zerolog.Nop())
	addr := "127.0.0.1:18423"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, addr, serverTLS) }()
	time.Sleep(100 * time.Millisecond) // let the listener bind

	client, err := Dial(context.Background(), addr, quicutil.MakeClientTLSConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	id := []byte("remote-chunk-1")
	envelope := []byte("round tripped over quic")

	entry, err := client.WriteChunk(context.Background(), id, envelope)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.CommitIndex(context.Background(), backend.IndexBatch{Entries: map[string]backend.IndexEntry{string(id): entry}}); err != nil {
		t.Fatal(err)
	}

	got, err := client.ReadChunk(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(envelope) {
		t.Fatalf("got %q, want %q", got, envelope)
	}

	archive := backend.StoredArchive{ArchiveID: []byte("archive-x"), Timestamp: 42}
	if err := client.AppendManifest(context.Background(), archive); err != nil {
		t.Fatal(err)
	}
	archives, err := client.ReadManifest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(archives) != 1 || string(archives[0].ArchiveID) != "archive-x" {
		t.Fatalf("unexpected manifest contents: %+v", archives)
	}

	lock, err := client.TakeWriteLock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}

	cancel()
	<-serveErr
}
