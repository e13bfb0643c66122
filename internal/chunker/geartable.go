package chunker

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const gearTableInfo = "asuran-v1-fastcdc-gear"

// gearTable holds 256 pseudo-random u64 entries, one per input byte value,
// used by the rolling hash. Deriving it from chunker_nonce (rather than a
// fixed constant table) means two repositories with different nonces cut
// the same input into different chunk boundaries.
type gearTable [256]uint64

func newGearTable(nonce []byte) (gearTable, error) {
	var table gearTable
	kdf := hkdf.New(sha256.New, nonce, nil, []byte(gearTableInfo))

	buf := make([]byte, 8*len(table))
	if _, err := io.ReadFull(kdf, buf); err != nil {
		return table, fmt.Errorf("chunker: expand gear table: %w", err)
	}
	for i := range table {
		table[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}
	return table, nil
}
