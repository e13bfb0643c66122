package chunker

import "io"

// Splitter produces a lazy sequence of chunks from a byte stream. Next
// returns io.EOF once the stream is exhausted; every other error is fatal.
type Splitter interface {
	Next() ([]byte, error)
}

// New constructs a Splitter over r per opts.Kind.
func New(r io.Reader, opts Options) (Splitter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Kind {
	case FastCDC:
		return newFastCDC(r, opts)
	case Static:
		return newStaticSplitter(r, opts.Size), nil
	default:
		panic("chunker: unreachable")
	}
}

// Split drains a Splitter fully into a slice. Intended for tests and small
// inputs; production code should stream via Next directly.
func Split(r io.Reader, opts Options) ([][]byte, error) {
	s, err := New(r, opts)
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for {
		c, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
}
