// Command migrate manages the Postgres schema with goose.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/migrate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type migrateCmd struct {
	dir string
}

func newRootCmd() *cobra.Command {
	m := &migrateCmd{}
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply, roll back and author SQL migrations",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&m.dir, "dir", "", "migrations directory (default: the set built into the binary)")

	root.AddCommand(
		m.dbCommand("up", "Apply all pending migrations", cobra.NoArgs,
			func(ctx context.Context, r *migrate.Runner, _ []string) (any, error) { return r.Up(ctx) }),
		m.dbCommand("down", "Roll back the newest migration", cobra.NoArgs,
			func(ctx context.Context, r *migrate.Runner, _ []string) (any, error) { return r.Down(ctx) }),
		m.dbCommand("status", "Show applied and pending migrations", cobra.NoArgs,
			func(ctx context.Context, r *migrate.Runner, _ []string) (any, error) { return r.Status(ctx) }),
		m.dbCommand("to <YYYYMMDDHHMMSS>", "Migrate up or down to a version", cobra.ExactArgs(1),
			func(ctx context.Context, r *migrate.Runner, args []string) (any, error) { return r.To(ctx, args[0]) }),
		m.createCmd(),
		m.validateCmd(),
	)
	return root
}

type runnerFunc func(context.Context, *migrate.Runner, []string) (any, error)

// dbCommand builds a subcommand that connects to the configured database.
func (m *migrateCmd) dbCommand(use, short string, args cobra.PositionalArgs, fn runnerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logg := logger.New(logger.Options{
				ServiceName: "migrate",
				Level:       logger.ParseLevel(cfg.App.LogLevel),
				Output:      cmd.ErrOrStderr(),
			})
			ctx := logg.WithFields(cmd.Context(), map[string]any{
				"env": cfg.App.Env,
				"cmd": cmd.Name(),
			})
			if cfg.DB.IsSQLite() {
				return fmt.Errorf("sqlite databases are migrated by the dev auto-migrate, not goose")
			}

			client, err := db.New(ctx, cfg.DB, logg)
			if err != nil {
				logg.Error(ctx, "database unavailable", err)
				return err
			}
			defer client.Close()
			sqlDB, err := client.DB().DB()
			if err != nil {
				return err
			}
			fsys, err := migrate.Source(m.dir)
			if err != nil {
				return err
			}
			runner, err := migrate.NewRunner(sqlDB, fsys)
			if err != nil {
				return err
			}

			result, err := fn(ctx, runner, args)
			if err != nil {
				logg.Error(ctx, "migration failed", err)
				return err
			}
			logg.Info(ctx, "migration finished")
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func (m *migrateCmd) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Write an empty migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := m.dir
			if dir == "" {
				dir = migrate.DefaultDir
			}
			path, err := migrate.Create(dir, args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func (m *migrateCmd) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check migration names, versions and goose sections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fsys, err := migrate.Source(m.dir)
			if err != nil {
				return err
			}
			files, err := migrate.Validate(fsys)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migrations ok\n", len(files))
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
