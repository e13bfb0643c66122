// Command asuran is the repository CLI: init, backup, restore, list and
// verify subcommands over a local repository directory.
package main

import (
	"flag"
	"fmt"
	"os"
)

const versionString = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "init":
		err = initCmd(args)
	case "backup":
		err = backupCmd(args)
	case "restore":
		err = restoreCmd(args)
	case "list":
		err = listCmd(args)
	case "verify":
		err = verifyCmd(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "asuran: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("asuran - deduplicating, encrypted backup archive")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  asuran init [-repo dir]")
	fmt.Println("  asuran backup [-repo dir] [-name archive-name] <path>...")
	fmt.Println("  asuran restore [-repo dir] <archive-id|latest> <dest-dir>")
	fmt.Println("  asuran list [-repo dir]")
	fmt.Println("  asuran verify [-repo dir] [-verify-id] [-sign key-file]")
}

func repoFlag(fs *flag.FlagSet) *string {
	return fs.String("repo", ".", "repository directory")
}
