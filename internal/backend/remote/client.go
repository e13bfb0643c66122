package remote

import (
	"context"
	"crypto/tls"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/asuran-archive/asuran/internal/backend"
)

const (
	quicKeepAlive = 10 * time.Second
	quicMaxIdle   = 60 * time.Second
)

// Client implements backend.Backend by round-tripping every call to a
// remote Server over one shared QUIC connection, one stream per call.
type Client struct {
	conn *quic.Conn
}

// Dial opens a QUIC connection to a remote backend server.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Client, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConf, &quic.Config{
		KeepAlivePeriod: quicKeepAlive,
		MaxIdleTimeout:  quicMaxIdle,
	})
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) roundTrip(ctx context.Context, req request) (response, error) {
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return response{}, fmt.Errorf("remote: open stream: %w", err)
	}
	defer stream.Close()

	if err := gob.NewEncoder(stream).Encode(req); err != nil {
		return response{}, fmt.Errorf("remote: encode request: %w", err)
	}
	if err := stream.Close(); err != nil {
		// half-close the write side so the server's Decode sees EOF
		return response{}, fmt.Errorf("remote: close write side: %w", err)
	}

	var resp response
	if err := gob.NewDecoder(stream).Decode(&resp); err != nil {
		return response{}, fmt.Errorf("remote: decode response: %w", err)
	}
	if !resp.OK {
		if resp.Err == backend.ErrNotFound.Error() {
			return response{}, backend.ErrNotFound
		}
		return response{}, errors.New(resp.Err)
	}
	return resp, nil
}

func (c *Client) ReadChunk(ctx context.Context, id []byte) ([]byte, error) {
	resp, err := c.roundTrip(ctx, request{Op: opReadChunk, ChunkID: id})
	if err != nil {
		return nil, err
	}
	return resp.Envelope, nil
}

func (c *Client) WriteChunk(ctx context.Context, id, envelope []byte) (backend.IndexEntry, error) {
	resp, err := c.roundTrip(ctx, request{Op: opWriteChunk, ChunkID: id, Envelope: envelope})
	if err != nil {
		return backend.IndexEntry{}, err
	}
	return resp.Entry, nil
}

func (c *Client) LookupIndex(ctx context.Context, id []byte) (backend.IndexEntry, error) {
	resp, err := c.roundTrip(ctx, request{Op: opLookupIndex, ChunkID: id})
	if err != nil {
		return backend.IndexEntry{}, err
	}
	return resp.Entry, nil
}

func (c *Client) CommitIndex(ctx context.Context, batch backend.IndexBatch) error {
	_, err := c.roundTrip(ctx, request{Op: opCommitIndex, Batch: batch.Entries})
	return err
}

func (c *Client) ReadManifest(ctx context.Context) ([]backend.StoredArchive, error) {
	resp, err := c.roundTrip(ctx, request{Op: opReadManifest})
	if err != nil {
		return nil, err
	}
	return resp.Archives, nil
}

func (c *Client) AppendManifest(ctx context.Context, entry backend.StoredArchive) error {
	_, err := c.roundTrip(ctx, request{Op: opAppendManifest, Archive: entry})
	return err
}

func (c *Client) TakeWriteLock(ctx context.Context) (backend.Lock, error) {
	return c.acquireLock(ctx, lockKindWrite)
}

func (c *Client) TakeReadLock(ctx context.Context) (backend.Lock, error) {
	return c.acquireLock(ctx, lockKindRead)
}

func (c *Client) acquireLock(ctx context.Context, kind lockKind) (backend.Lock, error) {
	resp, err := c.roundTrip(ctx, request{Op: opAcquireLock, LockKind: kind})
	if err != nil {
		return nil, err
	}
	return &remoteLock{client: c, token: resp.LockToken}, nil
}

func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "client closing")
}

type remoteLock struct {
	client *Client
	token  string
}

func (l *remoteLock) Release() error {
	_, err := l.client.roundTrip(context.Background(), request{Op: opReleaseLock, LockToken: l.token})
	return err
}

var _ backend.Backend = (*Client)(nil)
