package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"postboard.dev/internal/migrate"
	"postboard.dev/internal/obs"
	"postboard.dev/internal/store/pg"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		dsn     string
		table   string
		timeout time.Duration
	)
	flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flags.StringVar(&dsn, "dsn", os.Getenv("POSTBOARD_PG_DSN"), "PostgreSQL DSN (default $POSTBOARD_PG_DSN)")
	flags.StringVar(&table, "table", "", "goose version table (default goose_db_version)")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [flags] up|down|status|version")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if dsn == "" {
		return fmt.Errorf("missing DSN: provide via --dsn or POSTBOARD_PG_DSN")
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("expected exactly one command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, err := pg.Open(dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	var opts []migrate.Option
	if table != "" {
		opts = append(opts, migrate.WithTable(table))
	}
	mgr := migrate.NewManager(store.DB(), opts...)

	cmd := flags.Arg(0)
	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "status":
		var lines []string
		lines, err = mgr.Status(ctx)
		for _, l := range lines {
			fmt.Println(l)
		}
	case "version":
		var v int64
		v, err = mgr.Version(ctx)
		if err == nil {
			fmt.Println(v)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	obs.Logger().Info("migrate done", "command", cmd)
	return nil
}
