package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/asuran-archive/asuran/internal/chunker"
	"github.com/asuran-archive/asuran/internal/manifest"
	"github.com/asuran-archive/asuran/internal/observability"
	"github.com/asuran-archive/asuran/internal/pipeline"
)

func backupCmd(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	repoDir := repoFlag(fs)
	name := fs.String("name", "", "archive name (defaults to a timestamp)")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		return fmt.Errorf("backup requires at least one path")
	}

	opened, err := openRepository(*repoDir)
	if err != nil {
		return err
	}
	defer opened.Close()

	archiveName := *name
	if archiveName == "" {
		archiveName = time.Now().UTC().Format("20060102-150405")
	}

	log := observability.NewLogger("asuran", versionString, nil).WithRepository(*repoDir).WithArchive(archiveName)
	log.BackupStarted(archiveName, len(paths))
	started := time.Now()

	ctx := context.Background()
	p := pipeline.New(opened.repo, pipeline.DefaultOptions())
	a := manifest.NewArchive(archiveName)

	var objectCount int
	var bytesWritten int64
	for _, root := range paths {
		if err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			list, err := ingestFile(ctx, p, opened.opts, path)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			a.Put(manifest.ParsePath(path), list)
			objectCount++
			bytesWritten += list.TotalLength()
			return nil
		}); err != nil {
			return err
		}
	}

	m := manifest.Open(opened.back)
	archiveID, err := m.Commit(ctx, opened.repo, a)
	if err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	if err := opened.repo.Flush(ctx); err != nil {
		return fmt.Errorf("flush index: %w", err)
	}

	log.BackupCompleted(fmt.Sprintf("%x", archiveID), objectCount, time.Since(started), bytesWritten)
	fmt.Printf("Archive %x committed (%d objects)\n", archiveID, objectCount)
	return nil
}

func ingestFile(ctx context.Context, p *pipeline.Pipeline, opts chunker.Options, path string) (manifest.ChunkList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return p.IngestObject(ctx, f, opts)
}
