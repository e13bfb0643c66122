package chunk

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"
)

func compress(tag CompressionTag, level int, plaintext []byte) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return plaintext, nil

	case CompressionZStd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("chunk: zstd writer: %w", err)
		}
		out := enc.EncodeAll(plaintext, nil)
		_ = enc.Close()
		return out, nil

	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(plaintext); err != nil {
			return nil, fmt.Errorf("chunk: lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("chunk: lz4 close: %w", err)
		}
		return buf.Bytes(), nil

	case CompressionLZMA:
		var buf bytes.Buffer
		cfg := lzma.WriterConfig{}
		w, err := cfg.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("chunk: lzma writer: %w", err)
		}
		if _, err := w.Write(plaintext); err != nil {
			return nil, fmt.Errorf("chunk: lzma write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("chunk: lzma close: %w", err)
		}
		return buf.Bytes(), nil

	case CompressionZlib:
		var buf bytes.Buffer
		lv := level
		if lv <= 0 {
			lv = zlib.DefaultCompression
		}
		w, err := zlib.NewWriterLevel(&buf, lv)
		if err != nil {
			return nil, fmt.Errorf("chunk: zlib writer: %w", err)
		}
		if _, err := w.Write(plaintext); err != nil {
			return nil, fmt.Errorf("chunk: zlib write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("chunk: zlib close: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrConfig, tag)
	}
}

func decompress(tag CompressionTag, compressed []byte) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return compressed, nil

	case CompressionZStd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd reader: %v", ErrBadDecompress, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDecompress, err)
		}
		return out, nil

	case CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(compressed))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDecompress, err)
		}
		return out, nil

	case CompressionLZMA:
		r, err := lzma.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDecompress, err)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDecompress, err)
		}
		return out, nil

	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDecompress, err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDecompress, err)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrConfig, tag)
	}
}
