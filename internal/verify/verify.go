// Package verify walks the manifest -> archives -> chunks graph, recomputing
// MACs (and optionally content IDs) to report missing and corrupt chunks.
// Unreferenced index entries are not detected: backend.Backend has no
// operation that enumerates the index, and Report.UnreferencedIDs is left
// empty.
package verify

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/asuran-archive/asuran/internal/backend"
	"github.com/asuran-archive/asuran/internal/chunk"
	"github.com/asuran-archive/asuran/internal/manifest"
)

// Status classifies one chunk's verification outcome.
type Status int

const (
	OK Status = iota
	Missing
	Corrupt
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Missing:
		return "MISSING"
	case Corrupt:
		return "CORRUPT"
	default:
		return "UNKNOWN"
	}
}

// ChunkResult is one chunk's verification outcome.
type ChunkResult struct {
	ChunkID string `json:"chunk_id"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
}

// Report accumulates results across a full verify run.
type Report struct {
	MissingCount     int           `json:"missing_count"`
	CorruptCount     int           `json:"corrupt_count"`
	UnreferencedIDs  []string      `json:"unreferenced_ids,omitempty"`
	Results          []ChunkResult `json:"results"`
	Timestamp        time.Time     `json:"timestamp"`
	Signature        []byte        `json:"signature,omitempty"`
	PublicKey        []byte        `json:"public_key,omitempty"`
}

// Options controls how thorough a Verify run is.
type Options struct {
	// VerifyID also decrypts+decompresses every chunk to recompute its
	// content id (expensive). When false, only the cheap ciphertext MAC is
	// recomputed.
	VerifyID bool
}

// Verifier walks manifest -> archives -> chunks over a backend.
type Verifier struct {
	back backend.Backend
	keys chunk.Keys
}

func New(back backend.Backend, keys chunk.Keys) *Verifier {
	return &Verifier{back: back, keys: keys}
}

// Run walks every archive reachable from the manifest, verifying each chunk
// referenced by each archive's objects.
func (v *Verifier) Run(ctx context.Context, opts Options) (*Report, error) {
	m := manifest.Open(v.back)
	entries, err := m.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: list manifest: %w", err)
	}

	report := &Report{Timestamp: time.Now().UTC()}
	seen := make(map[string]struct{})

	for _, e := range entries {
		archive, err := manifest.ReadArchive(ctx, repoReader{v}, e.ArchiveID)
		if err != nil {
			report.Results = append(report.Results, ChunkResult{
				ChunkID: fmt.Sprintf("%x", e.ArchiveID),
				Status:  Corrupt.String(),
				Detail:  fmt.Sprintf("archive chunk unreadable: %v", err),
			})
			report.CorruptCount++
			continue
		}
		for _, list := range archive.Objects {
			for _, entry := range list {
				id := string(entry.ChunkID)
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				result := v.verifyChunk(ctx, entry.ChunkID, opts)
				report.Results = append(report.Results, result)
				switch result.Status {
				case Missing.String():
					report.MissingCount++
				case Corrupt.String():
					report.CorruptCount++
				}
			}
		}
	}

	return report, nil
}

func (v *Verifier) verifyChunk(ctx context.Context, id []byte, opts Options) ChunkResult {
	label := fmt.Sprintf("%x", id)

	envelope, err := v.back.ReadChunk(ctx, id)
	if err != nil {
		if errors.Is(err, backend.ErrCorrupt) {
			return ChunkResult{ChunkID: label, Status: Corrupt.String(), Detail: err.Error()}
		}
		return ChunkResult{ChunkID: label, Status: Missing.String(), Detail: err.Error()}
	}

	env, err := chunk.UnmarshalEnvelope(envelope)
	if err != nil {
		return ChunkResult{ChunkID: label, Status: Corrupt.String(), Detail: err.Error()}
	}

	if !opts.VerifyID {
		if err := verifyMACOnly(env, v.keys); err != nil {
			return ChunkResult{ChunkID: label, Status: Corrupt.String(), Detail: err.Error()}
		}
		return ChunkResult{ChunkID: label, Status: OK.String()}
	}

	if _, _, err := chunk.Unpack(envelope, v.keys, id); err != nil {
		return ChunkResult{ChunkID: label, Status: Corrupt.String(), Detail: err.Error()}
	}
	return ChunkResult{ChunkID: label, Status: OK.String()}
}

// verifyMACOnly recomputes the ciphertext MAC without decrypting — the
// cheap check.
func verifyMACOnly(env *chunk.Envelope, keys chunk.Keys) error {
	return chunk.VerifyMAC(env, keys)
}

// repoReader adapts Verifier's backend+keys into manifest.chunkReader so
// manifest.ReadArchive can be reused for the archive-chunk read itself.
type repoReader struct{ v *Verifier }

func (r repoReader) Read(ctx context.Context, id []byte) ([]byte, error) {
	envelope, err := r.v.back.ReadChunk(ctx, id)
	if err != nil {
		return nil, err
	}
	plaintext, _, err := chunk.Unpack(envelope, r.v.keys, id)
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// Sign signs the report's canonical JSON encoding with an Ed25519 key,
// grounded on the teacher's transfer-verification signing flow.
func Sign(report *Report, priv ed25519.PrivateKey) error {
	canonical, err := canonicalBytes(report)
	if err != nil {
		return fmt.Errorf("verify: canonicalize report: %w", err)
	}
	report.Signature = ed25519.Sign(priv, canonical)
	report.PublicKey = priv.Public().(ed25519.PublicKey)
	return nil
}

// VerifySignature checks a signed report's Ed25519 signature.
func VerifySignature(report *Report) bool {
	if len(report.Signature) != ed25519.SignatureSize || len(report.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	canonical, err := canonicalBytes(report)
	if err != nil {
		return false
	}
	return ed25519.Verify(report.PublicKey, canonical, report.Signature)
}

func canonicalBytes(report *Report) ([]byte, error) {
	return json.Marshal(struct {
		MissingCount    int           `json:"missing_count"`
		CorruptCount    int           `json:"corrupt_count"`
		UnreferencedIDs []string      `json:"unreferenced_ids,omitempty"`
		Results         []ChunkResult `json:"results"`
		Timestamp       int64         `json:"timestamp"`
	}{
		MissingCount:    report.MissingCount,
		CorruptCount:    report.CorruptCount,
		UnreferencedIDs: report.UnreferencedIDs,
		Results:         report.Results,
		Timestamp:       report.Timestamp.Unix(),
	})
}
