// Package ctl implements indiecctl, the operator tool for the INDIEC API.
//
// It generates secrets, hashes passwords, encrypts single field values with
// the server's field cipher and runs schema and encryption migrations
// against the configured stores. Store settings come from the same layers
// the server reads (defaults, JSON file, .env / environment, flags).
package ctl

import (
	"github.com/dmitrijs2005/indiec/internal/server/config"
	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every subcommand.
type RootOptions struct {
	ConfigFile    string
	EnvFile       string
	DatabaseDSN   string
	DocumentsURI  string
	EncryptionKey string

	// LoadConfig supplies the base configuration. Flag values set on the
	// command line are applied on top of it.
	LoadConfig func() *config.Config
}

// NewRootCommand builds the indiecctl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.LoadConfig})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indiecctl",
		Short: "Operator tooling for the INDIEC API",
		Long: `indiecctl manages secrets and schema for an INDIEC deployment.

It reads the same configuration as the server: a JSON file (-c), a .env
file (--env-file), INDIEC_* environment variables and the -d, -m and -k
flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// -c and --env-file are consumed by config.LoadConfig directly; they are
	// declared here so cobra accepts them.
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to JSON config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "path to .env file")
	cmd.PersistentFlags().StringVarP(&opts.DatabaseDSN, "dsn", "d", "", "PostgreSQL DSN")
	cmd.PersistentFlags().StringVarP(&opts.DocumentsURI, "documents", "m", "", "document store URI (mongodb://... or memory://)")
	cmd.PersistentFlags().StringVarP(&opts.EncryptionKey, "encryption-key", "k", "", "field encryption master secret")

	cmd.AddCommand(newKeygenCommand())
	cmd.AddCommand(newHashPasswordCommand())
	cmd.AddCommand(newEncryptValueCommand(opts))
	cmd.AddCommand(newDecryptValueCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newMigrateEncryptionCommand(opts))

	return cmd
}

// config returns the layered configuration with command-line overrides.
func (o *RootOptions) config() *config.Config {
	c := o.LoadConfig()
	if o.DatabaseDSN != "" {
		c.DatabaseDSN = o.DatabaseDSN
	}
	if o.DocumentsURI != "" {
		c.DocumentStoreURI = o.DocumentsURI
	}
	if o.EncryptionKey != "" {
		c.EncryptionSecret = o.EncryptionKey
	}
	return c
}
