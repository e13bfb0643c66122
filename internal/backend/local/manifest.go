package local

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/asuran-archive/asuran/internal/backend"
)

// manifestLog is the append-only log of StoredArchive rows, using the same
// self-framed record format as segments and the index log.
type manifestLog struct {
	f  *os.File
	mu sync.Mutex
}

func openManifestLog(path string) (*manifestLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("local: open manifest log: %w", err)
	}
	goodEnd, err := scanLastGoodRecord(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(goodEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("local: truncate manifest log: %w", err)
	}
	if _, err := f.Seek(goodEnd, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &manifestLog{f: f}, nil
}

func (m *manifestLog) append(entry backend.StoredArchive) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload := make([]byte, 2+len(entry.ArchiveID)+8)
	binary.LittleEndian.PutUint16(payload, uint16(len(entry.ArchiveID)))
	copy(payload[2:], entry.ArchiveID)
	binary.LittleEndian.PutUint64(payload[2+len(entry.ArchiveID):], uint64(entry.Timestamp))

	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(hdr, uint32(len(payload)))
	trailer := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailer, crc32.ChecksumIEEE(payload))

	if _, err := m.f.Write(hdr); err != nil {
		return err
	}
	if _, err := m.f.Write(payload); err != nil {
		return err
	}
	if _, err := m.f.Write(trailer); err != nil {
		return err
	}
	return m.f.Sync()
}

func (m *manifestLog) readAll() ([]backend.StoredArchive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var out []backend.StoredArchive
	hdr := make([]byte, 4)
	for {
		n, err := io.ReadFull(m.f, hdr)
		if n == 0 && err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		length := binary.LittleEndian.Uint32(hdr)
		body := make([]byte, length+4)
		if _, err := io.ReadFull(m.f, body); err != nil {
			break
		}
		payload := body[:length]
		wantCRC := binary.LittleEndian.Uint32(body[length:])
		if crc32.ChecksumIEEE(payload) != wantCRC {
			break
		}
		idLen := binary.LittleEndian.Uint16(payload)
		id := append([]byte(nil), payload[2:2+idLen]...)
		ts := int64(binary.LittleEndian.Uint64(payload[2+idLen:]))
		out = append(out, backend.StoredArchive{ArchiveID: id, Timestamp: ts})
	}
	if _, err := m.f.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *manifestLog) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.f.Close()
}
