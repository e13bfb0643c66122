// Package pipeline fans an object's byte stream out across a bounded pool of
// chunk-writing workers and reassembles the results back into an ordered
// manifest.ChunkList, using bounded channels and context cancellation, with
// a monotonically increasing sequence number as the ordering tag rather than
// a byte offset into a file on disk.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/asuran-archive/asuran/internal/chunker"
	"github.com/asuran-archive/asuran/internal/manifest"
	"github.com/asuran-archive/asuran/internal/ratelimit"
)

// Writer is the subset of repository.Repository the pipeline needs: it is
// declared here so repository need not depend on pipeline.
type Writer interface {
	Write(ctx context.Context, plaintext []byte) ([]byte, error)
}

// Options configures an ingest pipeline's concurrency.
type Options struct {
	// Workers is the number of concurrent chunk-writing goroutines.
	Workers int
	// QueueDepth bounds the in-flight job and result channels.
	QueueDepth int
	// Limiter, if set, throttles the writer stage's backend I/O so a backup
	// does not starve other repository consumers of disk or network
	// bandwidth. One token is consumed per chunk byte written.
	Limiter *ratelimit.TokenBucket
}

// DefaultOptions mirrors the teacher's default worker-pool shape: a handful
// of workers, a deep-enough queue to keep them fed without unbounded memory
// growth ahead of slow backend writes.
func DefaultOptions() Options {
	return Options{Workers: 4, QueueDepth: 64}
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 1
	}
	return o
}

// Pipeline drives chunking and concurrent chunk writes for one repository.
type Pipeline struct {
	writer Writer
	opts   Options
}

func New(writer Writer, opts Options) *Pipeline {
	return &Pipeline{writer: writer, opts: opts.withDefaults()}
}

type job struct {
	seq  int
	data []byte
}

type result struct {
	seq    int
	id     []byte
	length int64
	err    error
}

// IngestObject splits src according to chunkOpts, writes every chunk
// concurrently across the pipeline's worker pool, and reassembles the
// resulting chunk IDs back into a contiguous, in-order ChunkList. No partial
// object is ever visible to the caller: on the first worker error, remaining
// work is cancelled and IngestObject returns that error with no ChunkList.
func (p *Pipeline) IngestObject(ctx context.Context, src io.Reader, chunkOpts chunker.Options) (manifest.ChunkList, error) {
	splitter, err := chunker.New(src, chunkOpts)
	if err != nil {
		return nil, fmt.Errorf("pipeline: build splitter: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job, p.opts.QueueDepth)
	results := make(chan result, p.opts.QueueDepth)

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go p.codecWorker(ctx, &wg, jobs, results)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	splitErrCh := make(chan error, 1)
	go func() {
		defer close(jobs)
		splitErrCh <- splitInto(ctx, splitter, jobs)
	}()

	collected := make(map[int]result)
	total := -1
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		collected[res.seq] = res
	}
	if err := <-splitErrCh; err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	total = len(collected)
	list := make(manifest.ChunkList, 0, total)
	var offset int64
	for seq := 0; seq < total; seq++ {
		res, ok := collected[seq]
		if !ok {
			return nil, fmt.Errorf("pipeline: missing chunk for sequence %d of %d", seq, total)
		}
		list = append(list, manifest.ChunkListEntry{ChunkID: res.id, LogicalStart: offset, Length: res.length})
		offset += res.length
	}
	return list, nil
}

// splitInto reads every chunk out of splitter and hands it to jobs in
// sequence order, respecting cancellation so a downstream worker failure
// stops the reader promptly instead of draining the whole object first.
func splitInto(ctx context.Context, splitter chunker.Splitter, jobs chan<- job) error {
	seq := 0
	for {
		data, err := splitter.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pipeline: split object: %w", err)
		}
		select {
		case jobs <- job{seq: seq, data: data}:
		case <-ctx.Done():
			return ctx.Err()
		}
		seq++
	}
}

func (p *Pipeline) codecWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan job, results chan<- result) {
	defer wg.Done()
	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if p.opts.Limiter != nil {
				if err := p.opts.Limiter.Wait(ctx, len(j.data)); err != nil {
					results <- result{seq: j.seq, err: fmt.Errorf("pipeline: rate limit wait: %w", err)}
					continue
				}
			}
			id, err := p.writer.Write(ctx, j.data)
			if err != nil {
				results <- result{seq: j.seq, err: fmt.Errorf("pipeline: write chunk %d: %w", j.seq, err)}
				continue
			}
			results <- result{seq: j.seq, id: id, length: int64(len(j.data))}
		case <-ctx.Done():
			return
		}
	}
}
