// Package keys manages the repository key bundle: the three 32-byte chunk
// keys plus the chunker nonce, sealed under a passphrase-derived key.
package keys

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidPassphrase is returned when Unseal fails authentication — either
// the passphrase is wrong or the sealed bundle is corrupt.
var ErrInvalidPassphrase = errors.New("keys: invalid passphrase or corrupted key bundle")

const (
	keySize   = 32
	nonceSize = 8
)

// Bundle holds the repository's cryptographic material. EncKey, MacKey and
// IDKey MUST be distinct — GenerateBundle always draws three independent
// random values, never derives one from another.
type Bundle struct {
	EncKey       [keySize]byte
	MacKey       [keySize]byte
	IDKey        [keySize]byte
	ChunkerNonce [nonceSize]byte
}

// GenerateBundle creates a fresh, random key bundle for a new repository.
func GenerateBundle() (*Bundle, error) {
	b := &Bundle{}
	for _, buf := range [][]byte{b.EncKey[:], b.MacKey[:], b.IDKey[:], b.ChunkerNonce[:]} {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return nil, fmt.Errorf("keys: generate bundle: %w", err)
		}
	}
	return b, nil
}

// Zero overwrites all key material in place. Callers should defer Zero on
// any Bundle obtained from Unseal as soon as it is no longer needed.
func (b *Bundle) Zero() {
	for _, buf := range [][]byte{b.EncKey[:], b.MacKey[:], b.IDKey[:], b.ChunkerNonce[:]} {
		for i := range buf {
			buf[i] = 0
		}
	}
}

// marshal serializes the bundle to a fixed-size flat buffer for sealing.
func (b *Bundle) marshal() []byte {
	out := make([]byte, 0, keySize*3+nonceSize)
	out = append(out, b.EncKey[:]...)
	out = append(out, b.MacKey[:]...)
	out = append(out, b.IDKey[:]...)
	out = append(out, b.ChunkerNonce[:]...)
	return out
}

func unmarshalBundle(data []byte) (*Bundle, error) {
	if len(data) != keySize*3+nonceSize {
		return nil, fmt.Errorf("keys: malformed bundle: got %d bytes", len(data))
	}
	b := &Bundle{}
	copy(b.EncKey[:], data[0:keySize])
	copy(b.MacKey[:], data[keySize:2*keySize])
	copy(b.IDKey[:], data[2*keySize:3*keySize])
	copy(b.ChunkerNonce[:], data[3*keySize:3*keySize+nonceSize])
	return b, nil
}
