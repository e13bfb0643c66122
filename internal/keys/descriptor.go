package keys

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveSealed writes a Sealed bundle to path as the repository's key
// descriptor file. The file contains no key material usable without the
// passphrase: Cipher is the AES-256-GCM-sealed bundle, not the bundle
// itself.
func SaveSealed(path string, s *Sealed) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("keys: marshal sealed bundle: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("keys: write %s: %w", path, err)
	}
	return nil
}

// LoadSealed reads a repository's key descriptor file back into a Sealed
// bundle, ready for Unseal.
func LoadSealed(path string) (*Sealed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keys: read %s: %w", path, err)
	}
	var s Sealed
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("keys: unmarshal %s: %w", path, err)
	}
	return &s, nil
}
