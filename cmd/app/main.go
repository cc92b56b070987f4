package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/apperr"
)

func main() {
	cmd := &cli.Command{
		Name:     "ansuz",
		Usage:    "Per-project knowledge store with versioned markdown documents and ranked search",
		Flags:    internal.RootFlags(),
		Commands: internal.Commands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperr.ExitCode(err))
	}
}
