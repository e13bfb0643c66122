// Package erasure decorates backend.Backend with Reed-Solomon striping: each
// chunk envelope is split across k data shards and protected by r parity
// shards, each shard held by its own independent backend.Backend (modeling
// distinct disks or mounts). Up to r missing or corrupt shards are
// recoverable on read.
package erasure

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/asuran-archive/asuran/internal/backend"
)

type Backend struct {
	k, r   int
	shards []backend.Backend
	rs     reedsolomon.Encoder
}

// New builds an erasure-coded backend over k+r already-open shard backends,
// e.g. one local.Backend per directory/mount.
func New(k, r int, shards []backend.Backend) (*Backend, error) {
	if len(shards) != k+r {
		return nil, fmt.Errorf("erasure: need %d shard backends (k=%d + r=%d), got %d", k+r, k, r, len(shards))
	}
	rs, err := reedsolomon.New(k, r)
	if err != nil {
		return nil, fmt.Errorf("erasure: new reed-solomon encoder: %w", err)
	}
	return &Backend{k: k, r: r, shards: shards, rs: rs}, nil
}

// split prefixes envelope with its own length, pads to a multiple of k, and
// divides the result into k equal shards.
func (b *Backend) split(envelope []byte) [][]byte {
	framed := make([]byte, 4+len(envelope))
	binary.BigEndian.PutUint32(framed, uint32(len(envelope)))
	copy(framed[4:], envelope)

	shardSize := (len(framed) + b.k - 1) / b.k
	padded := make([]byte, shardSize*b.k)
	copy(padded, framed)

	out := make([][]byte, b.k)
	for i := 0; i < b.k; i++ {
		out[i] = padded[i*shardSize : (i+1)*shardSize]
	}
	return out
}

func (b *Backend) WriteChunk(ctx context.Context, id, envelope []byte) (backend.IndexEntry, error) {
	dataShards := b.split(envelope)
	parity := make([][]byte, b.r)
	shardSize := len(dataShards[0])
	for i := range parity {
		parity[i] = make([]byte, shardSize)
	}

	all := append(append([][]byte{}, dataShards...), parity...)
	if err := b.rs.Encode(all); err != nil {
		return backend.IndexEntry{}, fmt.Errorf("erasure: encode: %w", err)
	}

	var first backend.IndexEntry
	for i, shard := range all {
		entry, err := b.shards[i].WriteChunk(ctx, id, shard)
		if err != nil {
			return backend.IndexEntry{}, fmt.Errorf("erasure: write shard %d: %w", i, err)
		}
		if i == 0 {
			first = entry
		}
	}
	return first, nil
}

func (b *Backend) ReadChunk(ctx context.Context, id []byte) ([]byte, error) {
	all := make([][]byte, b.k+b.r)
	missing := 0
	for i := range all {
		shard, err := b.shards[i].ReadChunk(ctx, id)
		if err != nil {
			all[i] = nil
			missing++
			continue
		}
		all[i] = shard
	}
	if missing > b.r {
		return nil, fmt.Errorf("erasure: %d shards missing, can only recover %d: %w", missing, b.r, backend.ErrCorrupt)
	}
	if missing > 0 {
		if err := b.rs.Reconstruct(all); err != nil {
			return nil, fmt.Errorf("erasure: reconstruct: %w", err)
		}
	}

	var framed []byte
	for _, shard := range all[:b.k] {
		framed = append(framed, shard...)
	}
	if len(framed) < 4 {
		return nil, fmt.Errorf("erasure: reconstructed data too short: %w", backend.ErrCorrupt)
	}
	length := binary.BigEndian.Uint32(framed)
	if int(length) > len(framed)-4 {
		return nil, fmt.Errorf("erasure: recorded length exceeds reconstructed data: %w", backend.ErrCorrupt)
	}
	return framed[4 : 4+length], nil
}

// CommitIndex and AppendManifest are replicated to every shard so each
// remains independently openable and consistent. LookupIndex, ReadManifest
// and the locks are served by shard 0 alone.
func (b *Backend) LookupIndex(ctx context.Context, id []byte) (backend.IndexEntry, error) {
	return b.shards[0].LookupIndex(ctx, id)
}

func (b *Backend) CommitIndex(ctx context.Context, batch backend.IndexBatch) error {
	for i, s := range b.shards {
		if err := s.CommitIndex(ctx, batch); err != nil {
			return fmt.Errorf("erasure: commit index on shard %d: %w", i, err)
		}
	}
	return nil
}

func (b *Backend) ReadManifest(ctx context.Context) ([]backend.StoredArchive, error) {
	return b.shards[0].ReadManifest(ctx)
}

func (b *Backend) AppendManifest(ctx context.Context, entry backend.StoredArchive) error {
	for i, s := range b.shards {
		if err := s.AppendManifest(ctx, entry); err != nil {
			return fmt.Errorf("erasure: append manifest on shard %d: %w", i, err)
		}
	}
	return nil
}

func (b *Backend) TakeWriteLock(ctx context.Context) (backend.Lock, error) {
	return b.shards[0].TakeWriteLock(ctx)
}

func (b *Backend) TakeReadLock(ctx context.Context) (backend.Lock, error) {
	return b.shards[0].TakeReadLock(ctx)
}

func (b *Backend) Close() error {
	var firstErr error
	for _, s := range b.shards {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ backend.Backend = (*Backend)(nil)
