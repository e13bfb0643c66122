package chunk

import (
	"crypto/subtle"
)

// Keys holds the three repository keys the codec needs. The ID key and MAC
// key MUST be distinct (I4 in the data model) — nothing here enforces that
// beyond the caller's construction of the bundle in internal/keys.
type Keys struct {
	EncKey []byte
	MacKey []byte
	IDKey  []byte
}

// Pack computes the content ID, compresses, encrypts with a fresh random
// IV, and MACs the ciphertext (encrypt-then-MAC, mandatory even for AEAD
// ciphers so verification is homogeneous across tag choices). Returns the
// serialized envelope and the content ID that indexes it.
func Pack(plaintext []byte, s Settings, keys Keys) (envelope []byte, id []byte, err error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	chunkID, err := keyedSum(s.HMAC, keys.IDKey, plaintext)
	if err != nil {
		return nil, nil, err
	}

	compressed, err := compress(s.Compression, s.CompressionLevel, plaintext)
	if err != nil {
		return nil, nil, err
	}

	iv, err := newIV(s.Encryption)
	if err != nil {
		return nil, nil, err
	}

	ciphertext, err := encrypt(s.Encryption, keys.EncKey, iv, compressed)
	if err != nil {
		return nil, nil, err
	}

	mac, err := keyedSum(s.HMAC, keys.MacKey, ciphertext, []byte{byte(s.Encryption)}, []byte{byte(s.Compression)})
	if err != nil {
		return nil, nil, err
	}

	env := &Envelope{
		HMAC:             s.HMAC,
		Compression:      s.Compression,
		CompressionLevel: uint8(s.CompressionLevel),
		Encryption:       s.Encryption,
		IV:               iv,
		ID:               chunkID,
		MAC:              mac,
		Ciphertext:       ciphertext,
	}
	return env.Marshal(), chunkID, nil
}

// VerifyMAC recomputes the ciphertext MAC and compares it in constant time
// against the envelope's stored MAC, without touching the cipher. This is
// the cheap half of verification: it detects any tampering with the
// ciphertext or its tags without requiring the decryption key material to
// do anything beyond a keyed hash.
func VerifyMAC(env *Envelope, keys Keys) error {
	wantMAC, err := keyedSum(env.HMAC, keys.MacKey, env.Ciphertext, []byte{byte(env.Encryption)}, []byte{byte(env.Compression)})
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(wantMAC, env.MAC) != 1 {
		return ErrBadMAC
	}
	return nil
}

// Unpack verifies the MAC, then decrypts and decompresses. If expectedID is
// non-nil, the recomputed content ID is compared in constant time against
// it after decompression. Verification always precedes decryption: a bad
// MAC returns ErrBadMAC without ever invoking the cipher on attacker-
// controlled ciphertext.
func Unpack(data []byte, keys Keys, expectedID []byte) (plaintext []byte, id []byte, err error) {
	env, err := UnmarshalEnvelope(data)
	if err != nil {
		return nil, nil, err
	}

	if err := VerifyMAC(env, keys); err != nil {
		return nil, nil, err
	}

	compressed, err := decrypt(env.Encryption, keys.EncKey, env.IV, env.Ciphertext)
	if err != nil {
		return nil, nil, err
	}

	plaintext, err = decompress(env.Compression, compressed)
	if err != nil {
		return nil, nil, err
	}

	gotID, err := keyedSum(env.HMAC, keys.IDKey, plaintext)
	if err != nil {
		return nil, nil, err
	}
	if expectedID != nil && subtle.ConstantTimeCompare(gotID, expectedID) != 1 {
		return nil, nil, ErrBadID
	}

	return plaintext, gotID, nil
}

// Zero overwrites key-derived buffers in place. Callers that hold short-
// lived derived keys (e.g. a per-operation copy) should defer Zero(buf) the
// way internal/keys zeroizes the unsealed bundle.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
