package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/creatorhub/internal/vault"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new random vault key",
	Long: `Print a new random 32-byte key, hex encoded, for CREATORHUB_SECRET_KEY.

Credentials encrypted under one key cannot be read with another, so keep the
key stable for the lifetime of the database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := vault.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}
