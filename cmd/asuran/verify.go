package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/asuran-archive/asuran/internal/chunk"
	"github.com/asuran-archive/asuran/internal/observability"
	"github.com/asuran-archive/asuran/internal/verify"
)

func verifyCmd(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	repoDir := repoFlag(fs)
	verifyID := fs.Bool("verify-id", false, "also recompute and check content ids (slow)")
	signKeyPath := fs.String("sign", "", "Ed25519 private key file (raw 64 bytes) to sign the report")
	fs.Parse(args)

	opened, err := openRepository(*repoDir)
	if err != nil {
		return err
	}
	defer opened.Close()

	chunkKeys := chunk.Keys{EncKey: opened.bundle.EncKey[:], MacKey: opened.bundle.MacKey[:], IDKey: opened.bundle.IDKey[:]}
	v := verify.New(opened.back, chunkKeys)

	report, err := v.Run(context.Background(), verify.Options{VerifyID: *verifyID})
	if err != nil {
		return fmt.Errorf("run verify: %w", err)
	}

	log := observability.NewLogger("asuran", versionString, nil).WithRepository(*repoDir)
	metrics := observability.NewMetrics()
	for _, r := range report.Results {
		metrics.RecordVerifyChunk(r.Status)
		if r.Status != "OK" {
			log.ChunkVerifyFailed(r.ChunkID, r.Status, r.Detail)
		}
	}

	health := observability.NewHealthChecker(versionString)
	health.RegisterCheck("backend", observability.LocalBackendCheck(opened.back.Dir()))
	health.RegisterCheck("disk_space", observability.DiskSpaceCheck(opened.back.Dir(), 1))
	health.RegisterCheck("key_bundle", observability.KeyBundleCheck(true))
	healthResp := health.Check(context.Background())
	if healthResp.Status != observability.HealthStatusOK {
		log.Warn(fmt.Sprintf("repository health degraded: %s", healthResp.Status))
	}

	if *signKeyPath != "" {
		keyData, err := os.ReadFile(*signKeyPath)
		if err != nil {
			return fmt.Errorf("read signing key: %w", err)
		}
		if len(keyData) != ed25519.PrivateKeySize {
			return fmt.Errorf("signing key must be %d raw bytes, got %d", ed25519.PrivateKeySize, len(keyData))
		}
		if err := verify.Sign(report, ed25519.PrivateKey(keyData)); err != nil {
			return fmt.Errorf("sign report: %w", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if report.MissingCount > 0 || report.CorruptCount > 0 {
		os.Exit(1)
	}
	return nil
}
