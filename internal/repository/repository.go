// Package repository composes a backend.Backend with the chunk codec and
// key bundle into a content-addressed read/write surface, owning the write
// dedup set and the ciphertext read cache.
package repository

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/asuran-archive/asuran/internal/backend"
	"github.com/asuran-archive/asuran/internal/chunk"
)

const defaultReadCacheSize = 1024

// Repository is the content-addressed read/write surface over a backend.
type Repository struct {
	back           backend.Backend
	keys           chunk.Keys
	settings       chunk.Settings
	commitInterval int

	cache *lru.Cache[string, []byte] // ChunkId -> envelope

	dedupMu sync.RWMutex
	dedup   map[string]struct{} // ChunkIds seen this session

	stageMu sync.Mutex
	staged  map[string]backend.IndexEntry
}

// Options configures a Repository.
type Options struct {
	Settings       chunk.Settings
	CommitInterval int // flush the staged index batch every N writes
	ReadCacheSize  int
}

func DefaultOptions() Options {
	return Options{Settings: chunk.DefaultSettings(), CommitInterval: 64, ReadCacheSize: defaultReadCacheSize}
}

// New composes a Repository over an already-open backend and key bundle.
func New(back backend.Backend, keys chunk.Keys, opts Options) (*Repository, error) {
	if opts.CommitInterval <= 0 {
		opts.CommitInterval = 64
	}
	if opts.ReadCacheSize <= 0 {
		opts.ReadCacheSize = defaultReadCacheSize
	}
	cache, err := lru.New[string, []byte](opts.ReadCacheSize)
	if err != nil {
		return nil, fmt.Errorf("repository: new read cache: %w", err)
	}
	return &Repository{
		back:           back,
		keys:           keys,
		settings:       opts.Settings,
		commitInterval: opts.CommitInterval,
		cache:          cache,
		dedup:          make(map[string]struct{}),
		staged:         make(map[string]backend.IndexEntry),
	}, nil
}

// Write packs plaintext and writes it to the backend unless an identical
// chunk is already known (session dedup set, then the backend index).
// Index entries are staged and committed every commit_interval writes or on
// Flush.
func (r *Repository) Write(ctx context.Context, plaintext []byte) (id []byte, err error) {
	envelope, chunkID, err := chunk.Pack(plaintext, r.settings, r.keys)
	if err != nil {
		return nil, err
	}
	key := string(chunkID)

	r.dedupMu.RLock()
	_, seen := r.dedup[key]
	r.dedupMu.RUnlock()
	if seen {
		return chunkID, nil
	}

	if _, err := r.back.LookupIndex(ctx, chunkID); err == nil {
		r.markSeen(key)
		return chunkID, nil
	} else if err != backend.ErrNotFound {
		return nil, err
	}

	entry, err := r.back.WriteChunk(ctx, chunkID, envelope)
	if err != nil {
		return nil, err
	}
	r.markSeen(key)
	r.cache.Add(key, envelope)

	if err := r.stage(ctx, key, entry); err != nil {
		return nil, err
	}
	return chunkID, nil
}

func (r *Repository) markSeen(key string) {
	r.dedupMu.Lock()
	r.dedup[key] = struct{}{}
	r.dedupMu.Unlock()
}

func (r *Repository) stage(ctx context.Context, key string, entry backend.IndexEntry) error {
	r.stageMu.Lock()
	r.staged[key] = entry
	full := len(r.staged) >= r.commitInterval
	r.stageMu.Unlock()

	if full {
		return r.Flush(ctx)
	}
	return nil
}

// Flush commits any staged index entries as one atomic batch.
func (r *Repository) Flush(ctx context.Context) error {
	r.stageMu.Lock()
	if len(r.staged) == 0 {
		r.stageMu.Unlock()
		return nil
	}
	batch := r.staged
	r.staged = make(map[string]backend.IndexEntry)
	r.stageMu.Unlock()

	if err := r.back.CommitIndex(ctx, backend.IndexBatch{Entries: batch}); err != nil {
		// Put the batch back so a retry doesn't lose it.
		r.stageMu.Lock()
		for k, v := range batch {
			r.staged[k] = v
		}
		r.stageMu.Unlock()
		return err
	}
	return nil
}

// Read resolves id to its plaintext, verifying the MAC and content ID along
// the way (see internal/chunk.Unpack).
func (r *Repository) Read(ctx context.Context, id []byte) ([]byte, error) {
	key := string(id)

	var envelope []byte
	if cached, ok := r.cache.Get(key); ok {
		envelope = cached
	} else {
		raw, err := r.back.ReadChunk(ctx, id)
		if err != nil {
			return nil, err
		}
		envelope = raw
		r.cache.Add(key, envelope)
	}

	plaintext, _, err := chunk.Unpack(envelope, r.keys, id)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}
