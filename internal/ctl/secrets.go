package ctl

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/indiec/internal/common"
	"github.com/dmitrijs2005/indiec/internal/cryptox"
	"github.com/spf13/cobra"
)

func newKeygenCommand() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a random hex secret",
		Long:  "Print a random hex-encoded secret suitable for the JWT key or the field encryption secret.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size*2 < cryptox.MinSecretLength {
				return fmt.Errorf("--bytes must be at least %d", (cryptox.MinSecretLength+1)/2)
			}
			s, err := common.MakeRandHexString(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "bytes", 32, "number of random bytes")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	var (
		cost      int
		fromStdin bool
	)

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password with bcrypt",
		Long:  "Read a password from the terminal (or stdin with --stdin) and print its bcrypt hash.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := secretInput(cmd.InOrStdin(), cmd.ErrOrStderr(), nil, fromStdin, "Enter password: ")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)
			if len(pw) == 0 {
				return errors.New("password must not be empty")
			}

			hash, err := cryptox.NewPasswordHasher(cost).HashPassword(string(pw))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", cryptox.DefaultPasswordCost, "bcrypt cost")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the password from stdin")
	return cmd
}

func fieldCipher(opts *RootOptions) (*cryptox.FieldCipher, error) {
	c := opts.config()
	if c.DegradedEncryption() {
		return nil, fmt.Errorf("encryption secret must be at least %d characters", cryptox.MinSecretLength)
	}
	return cryptox.NewFieldCipher(c.EncryptionSecret)
}

func newEncryptValueCommand(opts *RootOptions) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "encrypt-value [value]",
		Short: "Encrypt a field value with the configured secret",
		Long: `Encrypt a value the way the server stores sensitive user fields and print
the iv:ciphertext pair. Without an argument the value is prompted for.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := fieldCipher(opts)
			if err != nil {
				return err
			}
			v, err := secretInput(cmd.InOrStdin(), cmd.ErrOrStderr(), args, fromStdin, "Enter value: ")
			if err != nil {
				return err
			}
			defer common.WipeByteArray(v)

			out, err := fc.EncryptField(string(v))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the value from stdin")
	return cmd
}

func newDecryptValueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt-value <iv:ciphertext>",
		Short: "Decrypt a stored field value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := fieldCipher(opts)
			if err != nil {
				return err
			}
			plain, err := fc.DecryptField(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plain)
			return nil
		},
	}
}
