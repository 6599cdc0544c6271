// migrate applies or rolls back the embedded ticket schema.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/trade-desk/internal/persistence"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	var dsn, direction string
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&dsn, "dsn", os.Getenv("POSTGRES_DSN"), "postgres connection string (default: $POSTGRES_DSN)")
	flagSet.StringVarP(&direction, "direction", "d", "up", "migration direction: up or down")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if dsn == "" {
		return errors.New("--dsn or POSTGRES_DSN is required")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	return persistence.RunMigrations(dsn, direction, logger)
}
