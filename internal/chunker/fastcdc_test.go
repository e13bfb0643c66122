package chunker

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return b
}

func TestFastCDCSizeInvariant(t *testing.T) {
	nonce := randomBytes(t, 8)
	opts := Options{Kind: FastCDC, MinSize: 256, AvgSize: 1024, MaxSize: 4096, Nonce: nonce}

	data := randomBytes(t, 512*1024)
	chunks, err := Split(bytes.NewReader(data), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks from 512KiB input, got %d", len(chunks))
	}
	for i, c := range chunks {
		last := i == len(chunks)-1
		if !last && (len(c) < opts.MinSize || len(c) > opts.MaxSize) {
			t.Fatalf("chunk %d length %d out of [%d,%d]", i, len(c), opts.MinSize, opts.MaxSize)
		}
		if last && len(c) > opts.MaxSize {
			t.Fatalf("final chunk %d exceeds max size: %d > %d", i, len(c), opts.MaxSize)
		}
	}
}

func TestFastCDCReassemblesExactBytes(t *testing.T) {
	nonce := randomBytes(t, 8)
	opts := Options{Kind: FastCDC, MinSize: 128, AvgSize: 512, MaxSize: 2048, Nonce: nonce}

	data := randomBytes(t, 200*1024)
	chunks, err := Split(bytes.NewReader(data), opts)
	if err != nil {
		t.Fatal(err)
	}
	var got []byte
	for _, c := range chunks {
		got = append(got, c...)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("reassembled bytes do not match input")
	}
}

func TestFastCDCDifferentNoncesDifferentBoundaries(t *testing.T) {
	data := randomBytes(t, 256*1024)

	optsA := Options{Kind: FastCDC, MinSize: 256, AvgSize: 1024, MaxSize: 4096, Nonce: []byte("nonce-a-00000000")}
	optsB := Options{Kind: FastCDC, MinSize: 256, AvgSize: 1024, MaxSize: 4096, Nonce: []byte("nonce-b-00000000")}

	chunksA, err := Split(bytes.NewReader(data), optsA)
	if err != nil {
		t.Fatal(err)
	}
	chunksB, err := Split(bytes.NewReader(data), optsB)
	if err != nil {
		t.Fatal(err)
	}

	same := len(chunksA) == len(chunksB)
	if same {
		for i := range chunksA {
			if len(chunksA[i]) != len(chunksB[i]) {
				same = false
				break
			}
		}
	}
	if same {
		t.Fatal("expected different chunker nonces to produce different boundaries")
	}
}

func TestFastCDCEmptyInput(t *testing.T) {
	opts := Options{Kind: FastCDC, MinSize: 256, AvgSize: 1024, MaxSize: 4096, Nonce: randomBytes(t, 8)}
	chunks, err := Split(bytes.NewReader(nil), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestFastCDCValidatesSizeOrdering(t *testing.T) {
	opts := Options{Kind: FastCDC, MinSize: 4096, AvgSize: 1024, MaxSize: 2048, Nonce: randomBytes(t, 8)}
	if _, err := New(bytes.NewReader(nil), opts); err == nil {
		t.Fatal("expected validation error for min > avg")
	}
}
