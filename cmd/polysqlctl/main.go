// Command polysqlctl is a small operator CLI over the conn/txn stack: it
// opens a connection URL and either reconciles a schema (migrate) or runs a
// literal statement (query-raw).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/polysql/polysql/conn"
)

func main() {
	log := logrus.New()

	if len(os.Args) < 2 {
		log.Fatal("usage: polysqlctl <migrate|query-raw> [flags]")
	}

	var err error
	switch os.Args[1] {
	case "migrate":
		err = runMigrate(log, os.Args[2:])
	case "query-raw":
		err = runQueryRaw(log, os.Args[2:])
	default:
		log.WithField("command", os.Args[1]).Fatal("unknown polysqlctl command")
	}
	if err != nil {
		log.WithError(err).Fatal("polysqlctl failed")
	}
}

func runMigrate(log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	url := fs.String("url", "", "connection URL (mysql://, postgres://, sqlite://)")
	modelsPath := fs.String("models", "", "path to a models yaml file")
	reset := fs.Bool("reset", false, "drop and recreate the target database before migrating")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" || *modelsPath == "" {
		return fmt.Errorf("polysqlctl migrate: --url and --models are required")
	}

	cfg, err := LoadModelsConfig(*modelsPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := conn.New(ctx, *url, *reset)
	if err != nil {
		return fmt.Errorf("polysqlctl: connect: %w", err)
	}
	defer c.Close()

	models, err := cfg.Build(c.Dialect())
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"dialect": c.Dialect(),
		"models":  len(models),
		"reset":   *reset,
	}).Info("running migration")

	if err := c.NoTransaction().Migrate(ctx, models, *reset); err != nil {
		return fmt.Errorf("polysqlctl: migrate: %w", err)
	}

	log.Info("migration complete")
	return nil
}

func runQueryRaw(log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("query-raw", flag.ExitOnError)
	url := fs.String("url", "", "connection URL (mysql://, postgres://, sqlite://)")
	sqlText := fs.String("sql", "", "literal SQL statement to run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *url == "" || *sqlText == "" {
		return fmt.Errorf("polysqlctl query-raw: --url and --sql are required")
	}

	ctx := context.Background()
	c, err := conn.New(ctx, *url, false)
	if err != nil {
		return fmt.Errorf("polysqlctl: connect: %w", err)
	}
	defer c.Close()

	log.WithFields(logrus.Fields{
		"dialect": c.Dialect(),
		"sql":     *sqlText,
	}).Info("running query-raw")

	result, err := c.NoTransaction().QueryRaw(ctx, *sqlText)
	if err != nil {
		return fmt.Errorf("polysqlctl: query-raw: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
