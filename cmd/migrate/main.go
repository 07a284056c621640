package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/migrate"
)

const usage = `usage: migrate <command> [args]

  up                 apply all pending migrations
  down               roll back the newest migration
  to <version>       move the schema to a YYYYMMDDHHMMSS version
  status             list migrations and when they were applied
  create <name>      write an empty migration into -dir
  validate           check the migration files in -dir
`

func main() {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dir := fs.String("dir", migrate.SourceDir, "migration directory for create and validate")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])

	if err := run(context.Background(), *dir, fs.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dir string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	cmd, rest := args[0], args[1:]

	// Offline commands work on the files only.
	switch cmd {
	case "create":
		if len(rest) != 1 {
			return fmt.Errorf("create takes exactly one name")
		}
		path, err := migrate.Create(dir, rest[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "created", path)
		return nil
	case "validate":
		if err := migrate.Validate(os.DirFS(dir)); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations ok")
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd})

	client, err := db.New(ctx, cfg.DB, false, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	migrator, err := migrate.New(sqlDB, nil)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "schema up to date")
	case "down":
		if err := migrator.Down(ctx); err != nil {
			return err
		}
		logg.Info(ctx, "rolled back one migration")
	case "to":
		if len(rest) != 1 {
			return fmt.Errorf("to takes exactly one version")
		}
		version, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return fmt.Errorf("version %q is not YYYYMMDDHHMMSS: %w", rest[0], err)
		}
		if err := migrator.To(ctx, version); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", version), "schema moved")
	case "status":
		rows, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		return printStatus(out, rows)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}

func printStatus(out io.Writer, rows []migrate.Status) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tAPPLIED\tFILE")
	for _, row := range rows {
		applied := "pending"
		if row.Applied {
			applied = row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", row.Version, applied, row.Path)
	}
	return tw.Flush()
}
