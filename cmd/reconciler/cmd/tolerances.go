package cmd

import (
	"os"

	"recurring-reconciliation-service/cmd/reconciler/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tolerancesCmd = &cobra.Command{
	Use:   "tolerances",
	Short: "Print the effective matching tolerances",
	Long: `Tolerances resolves the effective matching configuration: the selected
profile (default, strict or relaxed) with any overrides from flags, the
config file, or RECONCILER_* environment variables layered on top.`,
	RunE: runTolerances,
}

func init() {
	rootCmd.AddCommand(tolerancesCmd)

	tolerancesCmd.Flags().Int("date-tolerance", 0, "maximum date offset in days")
	tolerancesCmd.Flags().Float64("amount-tolerance", 0, "relative amount tolerance in percent")
	tolerancesCmd.Flags().Float64("amount-tolerance-abs", 0, "absolute amount tolerance")
	tolerancesCmd.Flags().Float64("similarity-threshold", 0, "minimum description similarity")
	tolerancesCmd.Flags().Float64("auto-match-threshold", 0, "score at or above which matches auto-accept")

	viper.BindPFlag("date_tolerance_days", tolerancesCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("amount_tolerance_percent", tolerancesCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("amount_tolerance_absolute", tolerancesCmd.Flags().Lookup("amount-tolerance-abs"))
	viper.BindPFlag("similarity_threshold", tolerancesCmd.Flags().Lookup("similarity-threshold"))
	viper.BindPFlag("auto_match_threshold", tolerancesCmd.Flags().Lookup("auto-match-threshold"))
}

func runTolerances(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	tol, err := config.LoadTolerances(viper.GetViper())
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	if err := printJSON(cmd, tol); err != nil {
		os.Exit(handler.HandleError(err))
	}
	return nil
}
