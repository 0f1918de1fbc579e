// Package main provides the entry point for the gantry CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mrz1836/gantry/internal/cli"
	"github.com/mrz1836/gantry/internal/signal"
)

// Build information set at build time via ldflags.
var (
	version = "" //nolint:gochecknoglobals // Set via ldflags
	commit  = "" //nolint:gochecknoglobals // Set via ldflags
	date    = "" //nolint:gochecknoglobals // Set via ldflags
)

func main() {
	handler := signal.NewHandler(context.Background())
	defer handler.Stop()

	info := cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	err := cli.Execute(handler.Context(), info)

	select {
	case <-handler.Interrupted():
		fmt.Fprintln(os.Stderr, "interrupted")
	default:
	}

	if err != nil {
		os.Exit(cli.ExitError)
	}
}
