package manifest

import "github.com/zeebo/blake3"

// ChunkListEntry covers one contiguous logical byte range of an object.
// Entries need not be contiguous with each other: gaps are legal and read
// back as zero bytes.
type ChunkListEntry struct {
	ChunkID      []byte `json:"chunk_id"`
	LogicalStart int64  `json:"logical_start"`
	Length       int64  `json:"length"`
}

// ChunkList is the ordered list of chunk references making up one object's
// logical byte range.
type ChunkList []ChunkListEntry

// TotalLength is the logical end offset across all entries (the length the
// object is read back as). Leading and inner gaps count toward it; a gap
// after the last entry cannot be represented.
func (cl ChunkList) TotalLength() int64 {
	var max int64
	for _, e := range cl {
		if end := e.LogicalStart + e.Length; end > max {
			max = end
		}
	}
	return max
}

// Digest folds the chunk list into a single content fingerprint by
// pairwise-combining chunk IDs bottom-up, the same way the teacher's
// file-transfer manifest folds per-chunk hashes into one Merkle root —
// generalized here from a flat chunk sequence to chunk lists that may be
// sparse and out of logical order on disk.
func (cl ChunkList) Digest() []byte {
	if len(cl) == 0 {
		return nil
	}
	level := make([][]byte, len(cl))
	for i, e := range cl {
		level[i] = e.ChunkID
	}
	for len(level) > 1 {
		var next [][]byte
		for i := 0; i < len(level); i += 2 {
			h := blake3.New()
			h.Write(level[i])
			if i+1 < len(level) {
				h.Write(level[i+1])
			} else {
				h.Write(level[i])
			}
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return level[0]
}
