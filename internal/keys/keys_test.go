package keys

import "testing"

func TestSealUnsealRoundTrip(t *testing.T) {
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

	got, err := Unseal(sealed, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if got.EncKey != b.EncKey || got.MacKey != b.MacKey || got.IDKey != b.IDKey {
		t.Fatal("unsealed bundle does not match original")
	}
}

func TestUnsealWrongPassphraseFails(t *testing.T) {
	b, err := GenerateBundle()
	if err != nil {
		t.Fatal(err)
	}
	params, err := DefaultKDFParams()
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := Seal(b, "correct passphrase", params)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Unseal(sealed, "wrong passphrase"); err != ErrInvalidPassphrase {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
}

func TestKeysAreDistinct(t *testing.T) {
	b, err := GenerateBundle()
	if err != nil {
		t.Fatal(err)
	}
	if b.EncKey == b.MacKey || b.MacKey == b.IDKey || b.EncKey == b.IDKey {
		t.Fatal("key bundle generated colliding keys (astronomically unlikely, check RNG)")
	}
}

func TestRepassphraseDoesNotRotateKeys(t *testing.T) {
	b, err := GenerateBundle()
	if err != nil {
		t.Fatal(err)
	}
	p1, err := DefaultKDFParams()
	if err != nil {
		t.Fatal(err)
	}
	p2, err := DefaultKDFParams()
	if err != nil {
		t.Fatal(err)
	}

	sealed1, err := Seal(b, "old passphrase", p1)
	if err != nil {
		t.Fatal(err)
	}
	sealed2, err := Seal(b, "new passphrase", p2)
	if err != nil {
		t.Fatal(err)
	}

	got1, err := Unseal(sealed1, "old passphrase")
	if err != nil {
		t.Fatal(err)
	}
	got2, err := Unseal(sealed2, "new passphrase")
	if err != nil {
		t.Fatal(err)
	}
	if got1.EncKey != got2.EncKey || got1.MacKey != got2.MacKey || got1.IDKey != got2.IDKey {
		t.Fatal("re-sealing rotated the inner keys; chunks written under the old passphrase would become undecryptable")
	}
}
