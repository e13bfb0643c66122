package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/asuran-archive/asuran/internal/manifest"
)

func restoreCmd(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	repoDir := repoFlag(fs)
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("restore requires an archive id (or \"latest\") and a destination directory")
	}
	archiveArg, destDir := rest[0], rest[1]

	opened, err := openRepository(*repoDir)
	if err != nil {
		return err
	}
	defer opened.Close()

	ctx := context.Background()
	m := manifest.Open(opened.back)

	archiveID, err := resolveArchiveID(ctx, m, archiveArg)
	if err != nil {
		return err
	}

	archive, err := manifest.ReadArchive(ctx, opened.repo, archiveID)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	for pathStr, list := range archive.Objects {
		destPath := filepath.Join(destDir, filepath.FromSlash(pathStr))
		if err := os.MkdirAll(filepath.Dir(destPath), 0o700); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(destPath), err)
		}
		var buf bytes.Buffer
		if err := list.WriteTo(ctx, opened.repo, &buf); err != nil {
			return fmt.Errorf("reconstruct %s: %w", pathStr, err)
		}
		if err := os.WriteFile(destPath, buf.Bytes(), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", destPath, err)
		}
	}

	fmt.Printf("Restored %d objects to %s\n", len(archive.Objects), destDir)
	return nil
}

func resolveArchiveID(ctx context.Context, m *manifest.Manifest, arg string) ([]byte, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manifest: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("repository has no archives")
	}
	if arg == "latest" {
		latest := entries[0]
		for _, e := range entries[1:] {
			if e.Timestamp.After(latest.Timestamp) {
				latest = e
			}
		}
		return latest.ArchiveID, nil
	}
	want, err := hex.DecodeString(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid archive id %q: %w", arg, err)
	}
	for _, e := range entries {
		if bytes.Equal(e.ArchiveID, want) {
			return e.ArchiveID, nil
		}
	}
	return nil, fmt.Errorf("no archive with id %s", arg)
}
