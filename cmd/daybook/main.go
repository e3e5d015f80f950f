package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"daybook/internal/app"
	"daybook/internal/cli"
	"daybook/internal/config"
	"daybook/internal/log"
)

func main() {
	// Load .env file for local use (ignored when absent)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(config.Load().LogLevel)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to start", log.FieldError, err)
		os.Exit(1)
	}

	err = cli.NewRunner(a, os.Stdout).Run(ctx, os.Args[1:])
	if cerr := a.Close(); cerr != nil {
		logger.Error("Shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, cerr)
	}

	select {
	case <-ctx.Done():
		cli.WaitForShutdown(ctx, done)
	default:
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, flag.ErrHelp):
	case errors.Is(err, cli.ErrUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
