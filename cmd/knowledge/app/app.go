// Package app provides the knowledge server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/finsight-io/finsight/cmd/knowledge/app/options"
	"github.com/finsight-io/finsight/internal/knowledge"
	"github.com/finsight-io/finsight/pkg/app"
)

const commandDesc = `FinSight Knowledge Service

The financial knowledge retrieval and analysis service for the FinSight platform.

This server provides:
  - Financial document ingestion with concept extraction and vector embeddings
  - Semantic knowledge search filtered by analysis discipline
  - Knowledge-grounded instrument analysis with LLM degradation handling
  - Valuation framework catalogues per instrument type`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(knowledge.Name),
		app.WithShortDescription("FinSight knowledge retrieval and analysis service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context cancelled on SIGINT or SIGTERM.
// A second signal forces exit.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
