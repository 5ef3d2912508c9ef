package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2beens/runcoach/internal/fitness"
)

var pacesCmd = &cobra.Command{
	Use:   "paces <10k-time>",
	Short: "Print the training pace zones for a predicted 10K time",
	Long: `The 10K time is either seconds (2400) or a duration (40m, 38m30s).

EXAMPLES:

  coachctl paces 2400
  coachctl paces 41m15s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := parse10kTime(args[0])
		if err != nil {
			return err
		}
		paces, err := fitness.CalculateTrainingPaces(seconds)
		if err != nil {
			return err
		}

		color.Green("10K in %s", time.Duration(seconds*float64(time.Second)).Round(time.Second))
		printPaces(paces)
		return nil
	},
}

func parse10kTime(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return seconds, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("cannot read 10K time %q, use seconds or a duration like 40m", raw)
	}
	return d.Seconds(), nil
}

func printPaces(paces fitness.TrainingPaces) {
	faint := color.New(color.Faint)
	rows := []struct {
		zone    string
		seconds int
	}{
		{"easy (fast end)", paces.EasyPaceLow},
		{"easy (slow end)", paces.EasyPaceHigh},
		{"tempo", paces.TempoPace},
		{"threshold", paces.ThresholdPace},
		{"interval", paces.IntervalPace},
		{"repetition", paces.RepetitionPace},
	}
	for _, row := range rows {
		fmt.Printf("  %-16s %s %s\n", row.zone, fitness.FormatPace(row.seconds), faint.Sprintf("(%ds/km)", row.seconds))
	}
}
