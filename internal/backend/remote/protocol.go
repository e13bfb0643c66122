// Package remote implements backend.Backend by forwarding every operation
// over QUIC to a Server wrapping another backend. Each RPC is framed as a
// gob-encoded request/response pair on its own QUIC stream: independent
// readers and writers never block on each other's head-of-line delivery,
// unlike a single multiplexed TCP connection.
package remote

import "github.com/asuran-archive/asuran/internal/backend"

type opCode string

const (
	opReadChunk      opCode = "read_chunk"
	opWriteChunk     opCode = "write_chunk"
	opLookupIndex    opCode = "lookup_index"
	opCommitIndex    opCode = "commit_index"
	opReadManifest   opCode = "read_manifest"
	opAppendManifest opCode = "append_manifest"
	opAcquireLock    opCode = "acquire_lock"
	opReleaseLock    opCode = "release_lock"
)

type lockKind string

const (
	lockKindWrite lockKind = "write"
	lockKindRead  lockKind = "read"
)

// request is gob-encoded onto a freshly opened stream; the server replies
// with exactly one response and then closes the stream.
type request struct {
	Op opCode

	ChunkID  []byte
	Envelope []byte

	Batch map[string]backend.IndexEntry

	Archive backend.StoredArchive

	LockKind  lockKind
	LockToken string // set only for opReleaseLock
}

type response struct {
	OK  bool
	Err string

	Envelope []byte
	Entry    backend.IndexEntry
	Archives []backend.StoredArchive

	LockToken string
}
