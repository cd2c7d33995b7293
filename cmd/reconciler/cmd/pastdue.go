package cmd

import (
	"os"
	"time"

	"recurring-reconciliation-service/internal/models"
	"recurring-reconciliation-service/internal/recurrence"

	"github.com/spf13/cobra"
)

var (
	pastdueSeriesFile string
	pastdueAsOf       string
	pastdueLookback   int
)

var pastdueCmd = &cobra.Command{
	Use:   "pastdue",
	Short: "List instances that were scheduled but never materialized",
	Long: `Pastdue lists the instances of every active series that were scheduled
inside the lookback window but are not skipped and have no generated
transaction. The as-of date itself is not yet past due.`,
	RunE: runPastDue,
}

func init() {
	rootCmd.AddCommand(pastdueCmd)

	pastdueCmd.Flags().StringVar(&pastdueSeriesFile, "series", "", "series definition file (required)")
	pastdueCmd.Flags().StringVar(&pastdueAsOf, "as-of", "", "reference date, YYYY-MM-DD (default today)")
	pastdueCmd.Flags().IntVar(&pastdueLookback, "lookback", 30, "lookback window in days")

	pastdueCmd.MarkFlagRequired("series")
}

func runPastDue(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	asOf := time.Now()
	if pastdueAsOf != "" {
		parsed, err := parseDateFlag("as-of", pastdueAsOf)
		if err != nil {
			os.Exit(handler.HandleError(err))
		}
		asOf = parsed
	}

	input, err := loadSeriesFile(pastdueSeriesFile)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	var pastDue []models.ProjectedInstance
	exceptions := input.exceptionsBySeries()
	for _, series := range input.Series {
		pastDue = append(pastDue,
			recurrence.FindPastDue(series, exceptions[series.ID], asOf, pastdueLookback, nil)...)
	}

	if err := printJSON(cmd, pastDue); err != nil {
		os.Exit(handler.HandleError(err))
	}
	return nil
}
