package local

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"github.com/asuran-archive/asuran/internal/backend"
)

var bucketIndex = []byte("index")

// indexCache is a BoltDB-backed materialized view over the committed index
// log, giving B+tree lookups without scanning the log on every lookup. Open
// still replays the whole log into it each time the backend is opened.
// Grounded on the teacher's BoltCAS key-existence cache.
type indexCache struct {
	db *bolt.DB
}

func openIndexCache(path string) (*indexCache, error) {
	db, err := bolt.Open(filepath.Clean(path), 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("local: open index cache: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketIndex)
		return e
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("local: init index cache bucket: %w", err)
	}
	return &indexCache{db: db}, nil
}

func (c *indexCache) close() error { return c.db.Close() }

func (c *indexCache) lookup(id []byte) (backend.IndexEntry, bool, error) {
	var entry backend.IndexEntry
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketIndex)
		v := bk.Get(id)
		if v == nil {
			return nil
		}
		found = true
		entry = decodeIndexValue(v)
		return nil
	})
	return entry, found, err
}

func (c *indexCache) put(id []byte, entry backend.IndexEntry) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketIndex)
		return bk.Put(id, encodeIndexValue(entry))
	})
}

func encodeIndexValue(e backend.IndexEntry) []byte {
	buf := make([]byte, 8+8+4)
	binary.BigEndian.PutUint64(buf[0:8], e.SegmentNo)
	binary.BigEndian.PutUint64(buf[8:16], e.Offset)
	binary.BigEndian.PutUint32(buf[16:20], e.Length)
	return buf
}

func decodeIndexValue(v []byte) backend.IndexEntry {
	return backend.IndexEntry{
		SegmentNo: binary.BigEndian.Uint64(v[0:8]),
		Offset:    binary.BigEndian.Uint64(v[8:16]),
		Length:    uint32(binary.BigEndian.Uint32(v[16:20])),
	}
}

// indexLog is the durable, append-only transaction log of index batches.
// Each commit is one atomic record: {len:u32, payload:bytes, crc32:u32}.
// On open, a partial trailing record (crash mid-commit) is dropped, exactly
// as with segments, so only complete transactions are ever replayed.
type indexLog struct {
	f *os.File
}

func openIndexLog(path string) (*indexLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("local: open index log: %w", err)
	}
	goodEnd, err := scanLastGoodRecord(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(goodEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("local: truncate index log: %w", err)
	}
	if _, err := f.Seek(goodEnd, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &indexLog{f: f}, nil
}

// replay reads every committed batch in the log, invoking fn for each
// (id, entry) pair. Used to rebuild indexCache if it is missing or stale.
func (l *indexLog) replay(fn func(id []byte, entry backend.IndexEntry)) error {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	hdr := make([]byte, 4)
	for {
		n, err := io.ReadFull(l.f, hdr)
		if n == 0 && err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		length := binary.LittleEndian.Uint32(hdr)
		body := make([]byte, length+4)
		if _, err := io.ReadFull(l.f, body); err != nil {
			break
		}
		payload := body[:length]
		wantCRC := binary.LittleEndian.Uint32(body[length:])
		if crc32.ChecksumIEEE(payload) != wantCRC {
			break
		}
		decodeIndexBatch(payload, fn)
	}
	_, err := l.f.Seek(0, io.SeekEnd)
	return err
}

func (l *indexLog) appendBatch(batch backend.IndexBatch) error {
	payload := encodeIndexBatch(batch)
	hdr := make([]byte, 4)
	binary.LittleEndian.PutUint32(hdr, uint32(len(payload)))
	trailer := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailer, crc32.ChecksumIEEE(payload))

	if _, err := l.f.Write(hdr); err != nil {
		return fmt.Errorf("local: write index batch header: %w", err)
	}
	if _, err := l.f.Write(payload); err != nil {
		return fmt.Errorf("local: write index batch payload: %w", err)
	}
	if _, err := l.f.Write(trailer); err != nil {
		return fmt.Errorf("local: write index batch crc: %w", err)
	}
	return l.f.Sync()
}

func (l *indexLog) close() error { return l.f.Close() }

// encodeIndexBatch serializes a batch as: count:u32, then per entry
// id_len:u16, id:bytes, segment_no:u64, offset:u64, length:u32.
func encodeIndexBatch(batch backend.IndexBatch) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(batch.Entries)))
	for id, e := range batch.Entries {
		idb := []byte(id)
		rec := make([]byte, 2+len(idb)+8+8+4)
		off := 0
		binary.LittleEndian.PutUint16(rec[off:], uint16(len(idb)))
		off += 2
		copy(rec[off:], idb)
		off += len(idb)
		binary.LittleEndian.PutUint64(rec[off:], e.SegmentNo)
		off += 8
		binary.LittleEndian.PutUint64(rec[off:], e.Offset)
		off += 8
		binary.LittleEndian.PutUint32(rec[off:], e.Length)
		buf = append(buf, rec...)
	}
	return buf
}

func decodeIndexBatch(payload []byte, fn func(id []byte, entry backend.IndexEntry)) {
	if len(payload) < 4 {
		return
	}
	count := binary.LittleEndian.Uint32(payload[:4])
	pos := 4
	for i := uint32(0); i < count; i++ {
		if pos+2 > len(payload) {
			return
		}
		idLen := int(binary.LittleEndian.Uint16(payload[pos:]))
		pos += 2
		if pos+idLen+20 > len(payload) {
			return
		}
		id := payload[pos : pos+idLen]
		pos += idLen
		segNo := binary.LittleEndian.Uint64(payload[pos:])
		pos += 8
		offset := binary.LittleEndian.Uint64(payload[pos:])
		pos += 8
		length := binary.LittleEndian.Uint32(payload[pos:])
		pos += 4
		fn(id, backend.IndexEntry{SegmentNo: segNo, Offset: offset, Length: length})
	}
}
