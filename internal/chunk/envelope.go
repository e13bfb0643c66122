package chunk

import (
	"encoding/binary"
	"fmt"
)

// Envelope is the on-disk serialization of a packed chunk: every tag, the
// IV, the content ID, the MAC, and the ciphertext. Field order and framing
// are fixed (see spec §6) so the format is stable across implementations at
// a given format version.
type Envelope struct {
	HMAC             HMACTag
	Compression      CompressionTag
	CompressionLevel uint8
	Encryption       EncryptionTag
	IV               []byte
	ID               []byte
	MAC              []byte
	Ciphertext       []byte
}

// Marshal encodes the envelope as:
//
//	hmac_tag:u8, compression_tag:u8, compression_level:u8, encryption_tag:u8,
//	iv_len:u8, iv:bytes, id_len:u8, id:bytes, mac_len:u8, mac:bytes,
//	ct_len:u32, ciphertext:bytes
func (e *Envelope) Marshal() []byte {
	size := 4 + 1 + len(e.IV) + 1 + len(e.ID) + 1 + len(e.MAC) + 4 + len(e.Ciphertext)
	buf := make([]byte, 0, size)
	buf = append(buf, byte(e.HMAC), byte(e.Compression), e.CompressionLevel, byte(e.Encryption))
	buf = append(buf, byte(len(e.IV)))
	buf = append(buf, e.IV...)
	buf = append(buf, byte(len(e.ID)))
	buf = append(buf, e.ID...)
	buf = append(buf, byte(len(e.MAC)))
	buf = append(buf, e.MAC...)
	var ctLen [4]byte
	binary.BigEndian.PutUint32(ctLen[:], uint32(len(e.Ciphertext)))
	buf = append(buf, ctLen[:]...)
	buf = append(buf, e.Ciphertext...)
	return buf
}

// UnmarshalEnvelope decodes a serialized envelope. It performs only framing
// validation; cryptographic verification happens in Unpack.
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	r := &reader{buf: data}
	e := &Envelope{}

	hmacTag, err := r.byte()
	if err != nil {
		return nil, err
	}
	e.HMAC = HMACTag(hmacTag)

	compTag, err := r.byte()
	if err != nil {
		return nil, err
	}
	e.Compression = CompressionTag(compTag)

	level, err := r.byte()
	if err != nil {
		return nil, err
	}
	e.CompressionLevel = level

	encTag, err := r.byte()
	if err != nil {
		return nil, err
	}
	e.Encryption = EncryptionTag(encTag)

	if e.IV, err = r.lenPrefixed8(); err != nil {
		return nil, err
	}
	if e.ID, err = r.lenPrefixed8(); err != nil {
		return nil, err
	}
	if e.MAC, err = r.lenPrefixed8(); err != nil {
		return nil, err
	}
	ctLen, err := r.uint32()
	if err != nil {
		return nil, err
	}
	e.Ciphertext, err = r.take(int(ctLen))
	if err != nil {
		return nil, err
	}
	if !r.empty() {
		return nil, fmt.Errorf("%w: trailing bytes after envelope", ErrMalformed)
	}
	return e, nil
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) empty() bool { return r.pos >= len(r.buf) }

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated envelope", ErrMalformed)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) lenPrefixed8() ([]byte, error) {
	n, err := r.byte()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}
