package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/asuran-archive/asuran/internal/manifest"
)

func listCmd(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	repoDir := repoFlag(fs)
	fs.Parse(args)

	opened, err := openRepository(*repoDir)
	if err != nil {
		return err
	}
	defer opened.Close()

	m := manifest.Open(opened.back)
	entries, err := m.List(context.Background())
	if err != nil {
		return fmt.Errorf("list manifest: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("no archives")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%x  %s\n", e.ArchiveID, e.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
