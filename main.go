package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/markis/learnpath/internal/args"
	"github.com/markis/learnpath/internal/client"
	"github.com/markis/learnpath/internal/config"
	"github.com/markis/learnpath/internal/render"
	"github.com/markis/learnpath/internal/session"
)

// main wires the configuration, transport, renderer and session controller
// together and runs one generation session.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	parsed, err := args.ParseArgs(*cfg)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	if parsed.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithTimeout(ctx, parsed.Timeout)
	defer cancel()

	pipeline := render.NewPipeline(render.NewTerminalRenderer(os.Stdout, parsed.UsePlainText))
	controller := session.New(client.New(parsed.Endpoint, logger), logger)

	return controller.Run(ctx, parsed.Topic, pipeline)
}
