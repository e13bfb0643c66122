package main

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/asuran-archive/asuran/internal/backend/local"
	"github.com/asuran-archive/asuran/internal/chunk"
	"github.com/asuran-archive/asuran/internal/chunker"
	"github.com/asuran-archive/asuran/internal/keys"
	"github.com/asuran-archive/asuran/internal/repository"
	"github.com/asuran-archive/asuran/internal/validation"
)

const (
	descriptorFile = "repository.json"
	dataDir        = "data"
)

// openedRepo bundles everything an asuran subcommand needs and owns the key
// bundle's lifetime: Close zeroes the bundle only after the backend and
// repository, which alias its key slices, are done with it.
type openedRepo struct {
	back   *local.Backend
	repo   *repository.Repository
	opts   chunker.Options
	bundle *keys.Bundle
}

func (o *openedRepo) Close() error {
	err := o.back.Close()
	o.bundle.Zero()
	return err
}

// openRepository prompts for the repository passphrase, unseals the key
// bundle, and opens the local backend and repository on top of it.
func openRepository(repoDir string) (*openedRepo, error) {
	if err := validation.ValidateFilePath(repoDir, true); err != nil {
		return nil, fmt.Errorf("repository directory: %w", err)
	}

	sealed, err := keys.LoadSealed(filepath.Join(repoDir, descriptorFile))
	if err != nil {
		return nil, fmt.Errorf("load descriptor: %w", err)
	}

	passphrase, err := readPassphrase("Enter passphrase: ")
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}

	bundle, err := keys.Unseal(sealed, passphrase)
	if err != nil {
		return nil, fmt.Errorf("unseal key bundle: %w", err)
	}

	back, err := local.Open(filepath.Join(repoDir, dataDir))
	if err != nil {
		bundle.Zero()
		return nil, fmt.Errorf("open backend: %w", err)
	}

	chunkKeys := chunk.Keys{EncKey: bundle.EncKey[:], MacKey: bundle.MacKey[:], IDKey: bundle.IDKey[:]}
	chunkOpts := chunker.DefaultOptions(bundle.ChunkerNonce[:])

	repo, err := repository.New(back, chunkKeys, repository.DefaultOptions())
	if err != nil {
		bundle.Zero()
		back.Close()
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &openedRepo{back: back, repo: repo, opts: chunkOpts, bundle: bundle}, nil
}

func readPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	passphrase := string(data)
	for i := range data {
		data[i] = 0
	}
	return passphrase, nil
}
