package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/clientbook/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		Logger: logger,
		Styled: true,
	})

	app := &cli.Command{
		Name:     "clientbook",
		Usage:    "Validate, browse and edit client records stored in JSON, YAML or SQL",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("command failed", "kind", shared.ErrorKind(err), "error", err)
	}
}
