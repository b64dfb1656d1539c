// Command migrate manages the storefront schema.
//
//	migrate up | down | status | to <version> | create <name> | validate
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/sweetcrumb/storefront/pkg/config"
	"github.com/sweetcrumb/storefront/pkg/db"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/migrate"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type options struct {
	dir string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply and author storefront schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "migrations directory; database commands default to the embedded set, create and validate to "+migrate.DefaultDir)

	root.AddCommand(
		dbCommand(opts, "up", "Apply all pending migrations", cobra.NoArgs,
			func(ctx context.Context, r *migrate.Runner, _ []string) error { return r.Up(ctx) }),
		dbCommand(opts, "down", "Roll back the latest migration", cobra.NoArgs,
			func(ctx context.Context, r *migrate.Runner, _ []string) error { return r.Down(ctx) }),
		dbCommand(opts, "status", "List migrations and whether they are applied", cobra.NoArgs,
			func(ctx context.Context, r *migrate.Runner, _ []string) error { return r.Status(ctx) }),
		dbCommand(opts, "to <version>", "Migrate up or down to a YYYYMMDDHHMMSS version", cobra.ExactArgs(1),
			func(ctx context.Context, r *migrate.Runner, args []string) error {
				version, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return r.To(ctx, version)
			}),
		&cobra.Command{
			Use:   "create <name>",
			Short: "Write an empty SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := migrate.CreateSQLMigration(opts.diskDir(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created migration:", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration file names and goose markers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := migrate.ValidateDir(opts.diskDir()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migration validation passed")
				return nil
			},
		},
	)
	return root
}

func (o *options) diskDir() string {
	if o.dir == "" {
		return migrate.DefaultDir
	}
	return o.dir
}

type runnerFunc func(ctx context.Context, r *migrate.Runner, args []string) error

// dbCommand wires config, logging and the database connection around fn.
func dbCommand(opts *options, use, short string, args cobra.PositionalArgs, fn runnerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) (err error) {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logg := logger.New(logger.Options{
				ServiceName: "migrate",
				Level:       logger.ParseLevel(cfg.App.LogLevel),
				WarnStack:   cfg.App.LogWarnStack,
				Output:      cmd.ErrOrStderr(),
			})
			ctx := logg.WithFields(cmd.Context(), map[string]any{"env": cfg.App.Env, "cmd": cmd.Name()})

			client, err := db.New(ctx, cfg.DB, logg)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, client.Close()) }()

			sqlDB, err := client.DB().DB()
			if err != nil {
				return err
			}
			fsys, err := migrate.Source(opts.dir)
			if err != nil {
				return err
			}
			runner, err := migrate.NewRunner(sqlDB, goose.DialectPostgres, fsys, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := fn(ctx, runner, argv); err != nil {
				logg.Error(ctx, "migrate.failed", err)
				return err
			}
			logg.Info(ctx, "migrate.done")
			return nil
		},
	}
}
