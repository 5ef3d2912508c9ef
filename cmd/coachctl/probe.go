package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/config"
	"github.com/2beens/runcoach/internal/garmin"
	"github.com/2beens/runcoach/internal/garmin/connect"
)

const envGarminPassword = "RUNCOACH_GARMIN_PASSWORD"

var (
	probeEmail   string
	probeTimeout time.Duration
)

var timeNow = time.Now

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Log in to Garmin and list the detected capabilities",
	Long: `Runs the same login the backend uses and prints which operations the client
supports. The password is read from ` + envGarminPassword + `.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := os.Getenv(envGarminPassword)
		if probeEmail == "" || password == "" {
			return fmt.Errorf("--email and %s are required", envGarminPassword)
		}

		cfg, err := loadConfigOrDefaults()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
		defer cancel()

		factory := connect.Factory{
			BaseURL:    cfg.baseURL,
			SSOURL:     cfg.ssoURL,
			HTTPClient: &http.Client{Timeout: probeTimeout},
		}
		client, err := garmin.Connect(
			ctx,
			garmin.Credentials{Email: probeEmail, Password: password},
			garmin.WithConstructors(garmin.Constructor{Name: "garmin-connect", Fn: factory.New}),
			garmin.WithHTTPClient(factory.HTTPClient),
		)
		if err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) {
				return fmt.Errorf("%s (%s)", appErr.Message, appErr.Kind)
			}
			return err
		}

		color.Green("✓ logged in as %s", probeEmail)
		fmt.Printf("  capabilities: %s\n", strings.Join(client.Capabilities(), ", "))
		return nil
	},
}

type probeEndpoints struct {
	baseURL string
	ssoURL  string
}

// loadConfigOrDefaults lets probe run without a config file.
func loadConfigOrDefaults() (probeEndpoints, error) {
	if _, err := os.Stat(flagConfigPath); errors.Is(err, os.ErrNotExist) {
		return probeEndpoints{baseURL: connect.DefaultBaseURL, ssoURL: connect.DefaultSSOURL}, nil
	}
	cfg, err := config.Load(flagEnv, flagConfigPath)
	if err != nil {
		return probeEndpoints{}, err
	}
	return probeEndpoints{baseURL: cfg.GarminBaseURL, ssoURL: cfg.GarminSSOURL}, nil
}

func init() {
	probeCmd.Flags().StringVar(&probeEmail, "email", "", "Garmin account email")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 30*time.Second, "login timeout")
}
