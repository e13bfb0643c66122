// Command asuran-keygen creates a new repository descriptor: a fresh,
// random key bundle sealed under an interactively-entered passphrase.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/asuran-archive/asuran/internal/keys"
)

const descriptorFile = "repository.json"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		initCmd(os.Args[2:])
	case "show":
		showCmd(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("asuran-keygen - repository key bundle management")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  asuran-keygen init [flags]   create a new repository descriptor")
	fmt.Println("  asuran-keygen show [flags]   display descriptor metadata")
}

func initCmd(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	repoDir := fs.String("repo", ".", "repository directory")
	force := fs.Bool("force", false, "overwrite an existing descriptor")
	fs.Parse(args)

	descPath := filepath.Join(*repoDir, descriptorFile)
	if !*force {
		if _, err := os.Stat(descPath); err == nil {
			fmt.Fprintf(os.Stderr, "%s already exists; pass -force to overwrite\n", descPath)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(*repoDir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create repository directory: %v\n", err)
		os.Exit(1)
	}

	passphrase, err := readNewPassphrase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read passphrase: %v\n", err)
		os.Exit(1)
	}

	bundle, err := keys.GenerateBundle()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key bundle: %v\n", err)
		os.Exit(1)
	}
	defer bundle.Zero()

	params, err := keys.DefaultKDFParams()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate KDF parameters: %v\n", err)
		os.Exit(1)
	}

	sealed, err := keys.Seal(bundle, passphrase, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seal key bundle: %v\n", err)
		os.Exit(1)
	}

	if err := keys.SaveSealed(descPath, sealed); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write descriptor: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Repository initialized.")
	fmt.Printf("Descriptor written to %s\n", descPath)
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	repoDir := fs.String("repo", ".", "repository directory")
	fs.Parse(args)

	sealed, err := keys.LoadSealed(filepath.Join(*repoDir, descriptorFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read descriptor: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Repository descriptor:")
	fmt.Printf("  KDF time:       %d\n", sealed.KDF.Time)
	fmt.Printf("  KDF memory:     %d KiB\n", sealed.KDF.Memory)
	fmt.Printf("  KDF threads:    %d\n", sealed.KDF.Threads)
	fmt.Printf("  sealed bytes:   %d\n", len(sealed.Cipher))
}

func readNewPassphrase() (string, error) {
	fmt.Print("Enter passphrase: ")
	p1, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	fmt.Print("Confirm passphrase: ")
	p2, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if string(p1) != string(p2) {
		return "", fmt.Errorf("passphrases do not match")
	}
	passphrase := string(p1)
	zeroBytes(p1)
	zeroBytes(p2)
	return passphrase, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
