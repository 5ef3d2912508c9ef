package main

import (
	"fmt"
	"net"

	"github.com/fatih/color"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/db"
	"github.com/2beens/runcoach/internal/users"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Database schema tooling",
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create missing tables and indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := db.ApplySchema(cmd.Context(), pool); err != nil {
			return err
		}
		color.Green("✓ schema applied")
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a user and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		user, err := users.NewRepo(pool).Create(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		color.Green("✓ created user %s", user.Email)
		fmt.Println(user.ID)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage session tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <user-id>",
	Short: "Issue a session token for a user",
	Long: `Stores a new session in Redis and prints the token. Send it as
"Authorization: Bearer <token>" or in the ` + "X-RUNCOACH-TOKEN" + ` header.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}

		pool, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()
		if _, err := users.NewRepo(pool).Get(cmd.Context(), userID); err != nil {
			return err
		}

		cfg, secrets, err := loadConfig()
		if err != nil {
			return err
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: secrets.RedisPassword,
		})
		defer rdb.Close()

		token, err := auth.NewService(auth.DefaultTTL, rdb).Issue(cmd.Context(), userID, timeNow())
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaApplyCmd)
	userCmd.AddCommand(userCreateCmd)
	tokenCmd.AddCommand(tokenIssueCmd)
}
