package manifest

import (
	"context"
	"fmt"
	"io"
)

// ObjectSink receives a logical object's bytes in order during a restore.
type ObjectSink interface {
	Write(p []byte) (n int, err error)
}

// ObjectSource supplies a logical object's bytes in order during a backup.
type ObjectSource interface {
	io.Reader
}

// WriteTo reconstructs an object's byte stream from its ChunkList into dst,
// filling any logical gaps before and between entries with zero bytes — the
// sparse-object semantics of spec.md. Nothing is written after the last
// entry.
func (cl ChunkList) WriteTo(ctx context.Context, repo chunkReader, dst ObjectSink) error {
	var cursor int64
	for _, e := range cl {
		if e.LogicalStart < cursor {
			return fmt.Errorf("manifest: chunk list entries out of order at offset %d", e.LogicalStart)
		}
		if gap := e.LogicalStart - cursor; gap > 0 {
			if err := writeZeros(dst, gap); err != nil {
				return err
			}
			cursor += gap
		}

		plaintext, err := repo.Read(ctx, e.ChunkID)
		if err != nil {
			return fmt.Errorf("manifest: read chunk at offset %d: %w", e.LogicalStart, err)
		}
		if int64(len(plaintext)) != e.Length {
			return fmt.Errorf("manifest: chunk at offset %d has length %d, chunk list says %d", e.LogicalStart, len(plaintext), e.Length)
		}
		if _, err := dst.Write(plaintext); err != nil {
			return fmt.Errorf("manifest: write reconstructed bytes: %w", err)
		}
		cursor += e.Length
	}
	return nil
}

const zeroFillChunk = 64 * 1024

func writeZeros(dst ObjectSink, n int64) error {
	buf := make([]byte, zeroFillChunk)
	for n > 0 {
		chunk := int64(len(buf))
		if n < chunk {
			chunk = n
		}
		if _, err := dst.Write(buf[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
