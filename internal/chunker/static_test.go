package chunker

import (
	"bytes"
	"testing"
)

func TestStaticExactMultiple(t *testing.T) {
	data := randomBytes(t, 300)
	opts := Options{Kind: Static, Size: 100}

	chunks, err := Split(bytes.NewReader(data), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != 100 {
			t.Fatalf("chunk %d: expected length 100, got %d", i, len(c))
		}
	}
}

func TestStaticTrailingPartial(t *testing.T) {
	data := randomBytes(t, 250)
	opts := Options{Kind: Static, Size: 100}

	chunks, err := Split(bytes.NewReader(data), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[2]) != 50 {
		t.Fatalf("expected trailing chunk of length 50, got %d", len(chunks[2]))
	}

	var got []byte
	for _, c := range chunks {
		got = append(got, c...)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("reassembled bytes do not match input")
	}
}

func TestStaticEmptyInput(t *testing.T) {
	opts := Options{Kind: Static, Size: 100}
	chunks, err := Split(bytes.NewReader(nil), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}
