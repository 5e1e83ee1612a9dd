// Package main provides the entry point for the gallerysearch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/kariantti/NuGetGallery/cmd/gallerysearch/cmd"
	"github.com/kariantti/NuGetGallery/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
