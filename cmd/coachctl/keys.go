package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2beens/runcoach/internal/config"
	"github.com/2beens/runcoach/pkg"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a credential encryption key",
	Long: `Prints 32 random bytes as 64 hex characters, the format expected in ` + config.EnvEncryptionKey + `.

Rotating the key makes every stored Garmin credential unreadable; users have to connect again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := pkg.GenerateRandomHex(32)
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := config.ValidateEncryptionKey(key); err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

var secretHashCmd = &cobra.Command{
	Use:   "secret-hash <secret>",
	Short: "Hash an MCP secret for " + config.EnvMCPSecretHash,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := pkg.HashPassword(args[0])
		if err != nil {
			return fmt.Errorf("hash secret: %w", err)
		}
		color.New(color.Faint).Printf("export %s=", config.EnvMCPSecretHash)
		fmt.Printf("'%s'\n", hash)
		return nil
	},
}
