// Package chunk implements the canonical chunk envelope: the encode/verify/
// decrypt/decompress pipeline that turns plaintext into an authenticated,
// encrypted, compressed on-disk record and back.
package chunk

import "fmt"

// CompressionTag selects the compression algorithm applied to plaintext
// before encryption. The byte value is stable on disk; adding an algorithm
// requires a format-version bump, not an open enum.
type CompressionTag byte

const (
	CompressionNone CompressionTag = iota
	CompressionZStd
	CompressionLZ4
	CompressionLZMA
	CompressionZlib
)

func (t CompressionTag) String() string {
	switch t {
	case CompressionNone:
		return "none"
	case CompressionZStd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionLZMA:
		return "lzma"
	case CompressionZlib:
		return "zlib"
	default:
		return fmt.Sprintf("compression(%d)", byte(t))
	}
}

// EncryptionTag selects the cipher applied to compressed plaintext.
type EncryptionTag byte

const (
	EncryptionNone EncryptionTag = iota
	EncryptionAES256CTR
	EncryptionChaCha20
	EncryptionAES256GCM
)

func (t EncryptionTag) String() string {
	switch t {
	case EncryptionNone:
		return "none"
	case EncryptionAES256CTR:
		return "aes256-ctr"
	case EncryptionChaCha20:
		return "chacha20"
	case EncryptionAES256GCM:
		return "aes256-gcm"
	default:
		return fmt.Sprintf("encryption(%d)", byte(t))
	}
}

// ivLen returns the IV/nonce length this cipher requires, or 0 for None.
func (t EncryptionTag) ivLen() int {
	switch t {
	case EncryptionAES256CTR:
		return 16
	case EncryptionChaCha20:
		return 12
	case EncryptionAES256GCM:
		return 12
	default:
		return 0
	}
}

// HMACTag selects the keyed hash used for both the content ID (over
// plaintext, under the ID key) and the MAC (over ciphertext, under the MAC
// key).
type HMACTag byte

const (
	HMACSHA2_256 HMACTag = iota
	HMACSHA3_256
	HMACBlake2b
	HMACBlake3
)

func (t HMACTag) String() string {
	switch t {
	case HMACSHA2_256:
		return "sha2-256"
	case HMACSHA3_256:
		return "sha3-256"
	case HMACBlake2b:
		return "blake2b"
	case HMACBlake3:
		return "blake3"
	default:
		return fmt.Sprintf("hmac(%d)", byte(t))
	}
}

// Settings pins the three tags and any level parameters used when packing a
// chunk. It is per-chunk in principle (the envelope records the tags that
// were actually used) but in practice comes from the repository's default
// settings for every write in a session.
type Settings struct {
	Compression      CompressionTag
	CompressionLevel int
	Encryption       EncryptionTag
	HMAC             HMACTag
}

// DefaultSettings returns zstd level 3, AES-256-GCM and Blake3, the settings
// repository.DefaultOptions uses for every write. The repository descriptor
// does not record chunk settings.
func DefaultSettings() Settings {
	return Settings{
		Compression:      CompressionZStd,
		CompressionLevel: 3,
		Encryption:       EncryptionAES256GCM,
		HMAC:             HMACBlake3,
	}
}

// Validate rejects configurations with unknown tags or out-of-range levels.
func (s Settings) Validate() error {
	switch s.Compression {
	case CompressionNone, CompressionZStd, CompressionLZ4, CompressionLZMA, CompressionZlib:
	default:
		return fmt.Errorf("%w: unknown compression tag %d", ErrConfig, s.Compression)
	}
	switch s.Compression {
	case CompressionZStd:
		if s.CompressionLevel < 1 || s.CompressionLevel > 22 {
			return fmt.Errorf("%w: zstd level %d out of range 1..22", ErrConfig, s.CompressionLevel)
		}
	case CompressionLZMA, CompressionZlib:
		if s.CompressionLevel < 0 || s.CompressionLevel > 9 {
			return fmt.Errorf("%w: %s level %d out of range 0..9", ErrConfig, s.Compression, s.CompressionLevel)
		}
	}
	switch s.Encryption {
	case EncryptionNone, EncryptionAES256CTR, EncryptionChaCha20, EncryptionAES256GCM:
	default:
		return fmt.Errorf("%w: unknown encryption tag %d", ErrConfig, s.Encryption)
	}
	switch s.HMAC {
	case HMACSHA2_256, HMACSHA3_256, HMACBlake2b, HMACBlake3:
	default:
		return fmt.Errorf("%w: unknown hmac tag %d", ErrConfig, s.HMAC)
	}
	return nil
}
