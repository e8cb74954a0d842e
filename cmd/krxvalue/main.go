package main

import (
	"os"

	"github.com/wonny/krxvalue/cmd/krxvalue/commands"
)

// main is the entry point for the krxvalue CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/krxvalue [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
