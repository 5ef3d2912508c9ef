// Package main is coachctl, the operator CLI: key and secret generation, schema setup,
// users and session tokens, Garmin login probes and pace tables.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/2beens/runcoach/internal/config"
	"github.com/2beens/runcoach/internal/db"
)

var (
	flagEnv        string
	flagConfigPath string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "coachctl",
	Short:         "Operator tooling for the runcoach backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "development", "environment [prod | production | dev | development]")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "./config.toml", "path for the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(keygenCmd, secretHashCmd, pacesCmd, schemaCmd, userCmd, tokenCmd, probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("✗ %s", err)
		os.Exit(1)
	}
}

// loadConfig reads the selected config section and the environment secrets.
func loadConfig() (*config.Config, *config.Secrets, error) {
	cfg, err := config.Load(flagEnv, flagConfigPath)
	if err != nil {
		return nil, nil, err
	}
	secrets, err := config.LoadSecrets(os.Getenv)
	if err != nil {
		return nil, nil, err
	}
	return cfg, secrets, nil
}

func openDB(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return nil, err
	}
	pool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: secrets.DBPassword,
	})
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}
