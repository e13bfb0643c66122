package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Archive is the logical-path -> chunk-list object graph for one backup
// snapshot. Its serialization is itself stored as a single chunk in the
// repository; the archive id returned by writing it is what the manifest
// log references.
type Archive struct {
	Name         string               `json:"name"`
	CreationTime time.Time            `json:"creation_time"`
	Objects      map[string]ChunkList `json:"objects"` // keyed by Path.String()
}

func NewArchive(name string) *Archive {
	return &Archive{Name: name, CreationTime: time.Now().UTC(), Objects: make(map[string]ChunkList)}
}

func (a *Archive) Put(path Path, list ChunkList) {
	a.Objects[path.String()] = list
}

func (a *Archive) Get(path Path) (ChunkList, bool) {
	list, ok := a.Objects[path.String()]
	return list, ok
}

func (a *Archive) Marshal() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("manifest: marshal archive: %w", err)
	}
	return data, nil
}

func UnmarshalArchive(data []byte) (*Archive, error) {
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal archive: %w", err)
	}
	return &a, nil
}

// chunkWriter is the subset of Repository an archive write needs.
type chunkWriter interface {
	Write(ctx context.Context, plaintext []byte) ([]byte, error)
}

// chunkReader is the subset of Repository an archive read needs.
type chunkReader interface {
	Read(ctx context.Context, id []byte) ([]byte, error)
}

// WriteArchive serializes a and stores it as a chunk, returning its id.
func WriteArchive(ctx context.Context, repo chunkWriter, a *Archive) ([]byte, error) {
	data, err := a.Marshal()
	if err != nil {
		return nil, err
	}
	return repo.Write(ctx, data)
}

// ReadArchive resolves archiveID back to its Archive.
func ReadArchive(ctx context.Context, repo chunkReader, archiveID []byte) (*Archive, error) {
	data, err := repo.Read(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	return UnmarshalArchive(data)
}
