package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/dares/internal/client/cli"
	"github.com/dmitrijs2005/dares/internal/client/config"
	"github.com/dmitrijs2005/dares/internal/common"
	"github.com/dmitrijs2005/dares/internal/logging"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	// Missing values are reported but not fatal: login then fails with a
	// configuration error and 'status' shows what is unset.
	if err := cfg.Validate(); err != nil {
		logger.Error(ctx, "invalid configuration", "error", err)
	}

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		if errors.Is(err, common.ErrConfiguration) {
			fmt.Fprint(os.Stderr, cfg.StatusReport())
		}
		os.Exit(1)
	}

	app.Run(ctx)

}
