package keys

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadSealedRoundTrip(t *testing.T) {
	b, err := GenerateBundle()
	if err != nil {
		t.Fatal(err)
	}
	params, err := DefaultKDFParams()
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := Seal(b, "correct horse battery staple", params)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "repository.json")
	if err := SaveSealed(path, sealed); err != nil {
		t.Fatal(err)
	}

	got, err := LoadSealed(path)
	if err != nil {
		t.Fatal(err)
	}
	unsealed, err := Unseal(got, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if unsealed.EncKey != b.EncKey || unsealed.MacKey != b.MacKey || unsealed.IDKey != b.IDKey {
		t.Fatal("bundle loaded from descriptor file does not match original")
	}
}

func TestLoadSealedMissingFile(t *testing.T) {
	_, err := LoadSealed(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err == nil {
		t.Fatal("expected error loading a missing descriptor file")
	}
}
