package ctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/indiec/internal/cryptox"
	"github.com/dmitrijs2005/indiec/internal/logging"
	"github.com/dmitrijs2005/indiec/internal/server"
	"github.com/dmitrijs2005/indiec/internal/server/config"
	"github.com/dmitrijs2005/indiec/internal/server/documents"
	"github.com/dmitrijs2005/indiec/internal/server/hybrid"
	"github.com/dmitrijs2005/indiec/internal/server/services"
	"github.com/spf13/cobra"
)

func newLogger(c *config.Config) (logging.Logger, error) {
	return logging.New(os.Stderr, c.LogLevel, c.LogFormat)
}

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending relational schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.config()
			logger, err := newLogger(c)
			if err != nil {
				return err
			}

			db, err := server.OpenDB(c)
			if err != nil {
				return err
			}
			defer db.Close()

			repos, err := server.NewRepositories(c, logger, nil)
			if err != nil {
				return err
			}
			if err := repos.RunMigrations(cmd.Context(), db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newMigrateEncryptionCommand(opts *RootOptions) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "migrate-encryption",
		Short: "Encrypt user rows stored before field encryption was enabled",
		Long: `Rewrite every user row whose sensitive fields are still plaintext using the
configured encryption secret. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.config()
			if c.DegradedEncryption() {
				return errors.New("an encryption secret is required to migrate user rows")
			}
			logger, err := newLogger(c)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := server.OpenDB(c)
			if err != nil {
				return err
			}
			defer db.Close()

			docs, err := documents.Open(ctx, c.DocumentStoreURI, c.DocumentDatabase, time.Duration(c.AuditRetentionDays)*24*time.Hour)
			if err != nil {
				return fmt.Errorf("document store: %w", err)
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
				defer cancel()
				_ = docs.Close(closeCtx)
			}()
			audit := services.NewAuditService(docs, logger)

			repos, err := server.NewRepositories(c, logger, audit.CodecFailure)
			if err != nil {
				return err
			}
			if err := repos.RunMigrations(ctx, db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}

			deps := services.Deps{
				DB:     db,
				Repos:  repos,
				Docs:   docs,
				Hybrid: hybrid.New(db, logger),
				Audit:  audit,
				Logger: logger,
			}
			users := services.NewUserService(deps, cryptox.NewPasswordHasher(c.PasswordHashCost), c)

			n, err := users.MigrateEncryption(ctx, batch)
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d user rows\n", n)
			return err
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 100, "rows per batch")
	return cmd
}
