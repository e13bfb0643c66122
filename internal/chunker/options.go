// Package chunker splits a byte stream into chunk boundaries. FastCDC is the
// default, content-defined strategy; Static produces fixed-size blocks.
package chunker

import "fmt"

// Kind selects the splitting strategy.
type Kind uint8

const (
	FastCDC Kind = iota
	Static
)

// Options configures a Splitter. For FastCDC, MinSize/AvgSize/MaxSize bound
// the produced block lengths. For Static, Size is the fixed block length and
// the other fields are ignored.
type Options struct {
	Kind    Kind
	MinSize int
	AvgSize int
	MaxSize int
	Size    int

	// Nonce seeds the FastCDC gear table. It MUST come from the repository's
	// chunker_nonce so that chunk boundaries differ across repositories
	// (defense against chunk-size fingerprinting). Unused by Static.
	Nonce []byte
}

// DefaultOptions returns the FastCDC defaults: avg_size = 64 KiB, min =
// avg/4, max = avg*4.
func DefaultOptions(nonce []byte) Options {
	const avg = 64 * 1024
	return Options{
		Kind:    FastCDC,
		MinSize: avg / 4,
		AvgSize: avg,
		MaxSize: avg * 4,
		Nonce:   nonce,
	}
}

// Validate checks size ordering invariants.
func (o Options) Validate() error {
	switch o.Kind {
	case FastCDC:
		if o.MinSize <= 0 || o.AvgSize <= o.MinSize || o.MaxSize <= o.AvgSize {
			return fmt.Errorf("chunker: invalid FastCDC sizes: min=%d avg=%d max=%d", o.MinSize, o.AvgSize, o.MaxSize)
		}
		if len(o.Nonce) == 0 {
			return fmt.Errorf("chunker: FastCDC requires a non-empty nonce")
		}
	case Static:
		if o.Size <= 0 {
			return fmt.Errorf("chunker: invalid static size %d", o.Size)
		}
	default:
		return fmt.Errorf("chunker: unknown kind %d", o.Kind)
	}
	return nil
}
