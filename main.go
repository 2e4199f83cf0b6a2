package main

import (
	"os"

	"github.com/nix-community/nixpkgs-review/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
