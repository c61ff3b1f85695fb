// Command docconflicts finds overlapping and contradicting statements across
// a document corpus and recommends which documents to retire.
package main

import (
	"fmt"
	"os"

	"github.com/todmy/doc-conflicts/cmd/docconflicts/commands"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
