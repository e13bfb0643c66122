package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// KDFParams records the Argon2id parameters used to seal a bundle. These
// are stored unencrypted in the repository descriptor so a future open can
// repeat the exact derivation.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory_kib"`
	Threads uint8  `json:"threads"`
	Salt    []byte `json:"salt"`
}

// DefaultKDFParams mirrors the teacher's interactive-use Argon2id
// parameters (3 iterations, 64 MiB, 4-way parallelism).
func DefaultKDFParams() (KDFParams, error) {
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return KDFParams{}, fmt.Errorf("keys: generate salt: %w", err)
	}
	return KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4, Salt: salt}, nil
}

func (p KDFParams) derive(passphrase string) []byte {
	return argon2.IDKey([]byte(passphrase), p.Salt, p.Time, p.Memory, p.Threads, keySize)
}

// Sealed is the on-disk, passphrase-encrypted form of a Bundle, as stored in
// the repository descriptor.
type Sealed struct {
	Version int       `json:"version"`
	KDF     KDFParams `json:"kdf"`
	Nonce   []byte    `json:"nonce"`
	Cipher  []byte    `json:"ciphertext"`
}

const sealedVersion = 1

// Seal derives a key from passphrase via Argon2id and encrypts the bundle
// with AES-256-GCM. Re-sealing (passphrase change) calls Seal again with
// fresh KDFParams; it never touches the inner EncKey/MacKey/IDKey, so
// previously written chunks stay decryptable.
func Seal(b *Bundle, passphrase string, params KDFParams) (*Sealed, error) {
	derived := params.derive(passphrase)
	defer zero(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("keys: seal cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keys: seal gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("keys: seal nonce: %w", err)
	}

	plaintext := b.marshal()
	defer zero(plaintext)

	ct := gcm.Seal(nil, nonce, plaintext, nil)
	return &Sealed{Version: sealedVersion, KDF: params, Nonce: nonce, Cipher: ct}, nil
}

// Unseal derives the same key from passphrase and decrypts the bundle. On
// the wrong passphrase or any corruption of the sealed blob, GCM
// authentication fails and ErrInvalidPassphrase is returned — this is the
// only failure mode; there is no partial decrypt.
func Unseal(s *Sealed, passphrase string) (*Bundle, error) {
	if s.Version != sealedVersion {
		return nil, fmt.Errorf("keys: unsupported sealed bundle version %d", s.Version)
	}
	derived := s.KDF.derive(passphrase)
	defer zero(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("keys: unseal cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keys: unseal gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, s.Nonce, s.Cipher, nil)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	defer zero(plaintext)

	return unmarshalBundle(plaintext)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
