package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wichananm65/perfume-shop-backend/internal/config"
	"github.com/wichananm65/perfume-shop-backend/internal/database"
)

type rootOptions struct {
	DatabaseURL string
	Format      string // "text" | "json"
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "shopctl",
		Short:         "Operator tasks for the perfume shop backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "Postgres DSN (defaults to DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newHashPasswordCommand())
	cmd.AddCommand(newReconcileCommand(opts))

	return cmd
}

// openDB resolves the DSN from the flag or the environment and applies the
// schema so a fresh database can be seeded directly.
func (o *rootOptions) openDB(ctx context.Context) (*sql.DB, error) {
	dsn := o.DatabaseURL
	if dsn == "" {
		dsn = config.Load().DatabaseURL
	}
	if dsn == "" {
		return nil, errors.New("no database: pass --database-url or set DATABASE_URL")
	}
	db, err := database.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
