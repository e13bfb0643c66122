package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/asuran-archive/asuran/internal/backend/local"
	"github.com/asuran-archive/asuran/internal/keys"
)

func initCmd(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	repoDir := repoFlag(fs)
	fs.Parse(args)

	descPath := filepath.Join(*repoDir, descriptorFile)
	if _, err := os.Stat(descPath); err == nil {
		return fmt.Errorf("%s already exists", descPath)
	}

	if err := os.MkdirAll(*repoDir, 0o700); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}

	passphrase, err := readPassphrase("Enter new passphrase: ")
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	confirm, err := readPassphrase("Confirm passphrase: ")
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	if passphrase != confirm {
		return fmt.Errorf("passphrases do not match")
	}

	bundle, err := keys.GenerateBundle()
	if err != nil {
		return fmt.Errorf("generate key bundle: %w", err)
	}
	defer bundle.Zero()

	params, err := keys.DefaultKDFParams()
	if err != nil {
		return fmt.Errorf("generate KDF parameters: %w", err)
	}

	sealed, err := keys.Seal(bundle, passphrase, params)
	if err != nil {
		return fmt.Errorf("seal key bundle: %w", err)
	}
	if err := keys.SaveSealed(descPath, sealed); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}

	back, err := local.Open(filepath.Join(*repoDir, dataDir))
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	if err := back.Close(); err != nil {
		return err
	}

	fmt.Printf("Repository initialized at %s\n", *repoDir)
	return nil
}
