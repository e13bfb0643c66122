package chunk

import "errors"

// Error kinds, matching the taxonomy in the core error-handling design:
// integrity failures are fatal for the affected chunk only and never expose
// partially-decrypted output.
var (
	ErrBadMAC        = errors.New("chunk: mac verification failed")
	ErrBadID         = errors.New("chunk: recomputed id does not match expected id")
	ErrBadDecompress = errors.New("chunk: decompression failed")
	ErrConfig        = errors.New("chunk: invalid settings")
	ErrMalformed     = errors.New("chunk: malformed envelope")
)
