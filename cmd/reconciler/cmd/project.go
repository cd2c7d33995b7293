package cmd

import (
	"encoding/json"
	"os"
	"time"

	"recurring-reconciliation-service/internal/models"
	"recurring-reconciliation-service/internal/recurrence"
	corerrors "recurring-reconciliation-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	projectSeriesFile string
	projectFrom       string
	projectTo         string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Expand recurring series into dated instances over a window",
	Long: `Project expands every active recurring series from the input file into
concrete dated instances inside the requested window, applying any
per-instance exception overrides.

The series file is JSON:

  {
    "series": [ { "id": "...", "frequency": "monthly", ... } ],
    "exceptions": [ { "seriesId": "...", "scheduledDate": "...", ... } ]
  }

Instances are printed as a JSON array, ordered per series by scheduled
date.`,
	RunE: runProject,
}

func init() {
	rootCmd.AddCommand(projectCmd)

	projectCmd.Flags().StringVar(&projectSeriesFile, "series", "", "series definition file (required)")
	projectCmd.Flags().StringVar(&projectFrom, "from", "", "window start, YYYY-MM-DD (required)")
	projectCmd.Flags().StringVar(&projectTo, "to", "", "window end, YYYY-MM-DD, inclusive (required)")

	projectCmd.MarkFlagRequired("series")
	projectCmd.MarkFlagRequired("from")
	projectCmd.MarkFlagRequired("to")
}

func runProject(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	windowStart, err := parseDateFlag("from", projectFrom)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}
	windowEnd, err := parseDateFlag("to", projectTo)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	input, err := loadSeriesFile(projectSeriesFile)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	var instances []models.ProjectedInstance
	exceptions := input.exceptionsBySeries()
	for _, series := range input.Series {
		instances = append(instances,
			recurrence.ProjectInstances(series, exceptions[series.ID], windowStart, windowEnd, nil)...)
	}

	if err := printJSON(cmd, instances); err != nil {
		os.Exit(handler.HandleError(err))
	}
	return nil
}

// seriesInput is the JSON shape of the --series file.
type seriesInput struct {
	Series     []*models.RecurringSeries  `json:"series"`
	Exceptions []models.InstanceException `json:"exceptions"`
}

func (in *seriesInput) exceptionsBySeries() map[uuid.UUID][]models.InstanceException {
	out := make(map[uuid.UUID][]models.InstanceException)
	for _, exc := range in.Exceptions {
		out[exc.SeriesID] = append(out[exc.SeriesID], exc)
	}
	return out
}

func loadSeriesFile(path string) (*seriesInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, corerrors.ValidationError(corerrors.CodeInvalidArgument, "series file", err).
			WithContext("path", path).
			WithSuggestion("check that the file exists and is readable")
	}

	var input seriesInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, corerrors.ValidationError(corerrors.CodeInvalidArgument, "series file", err).
			WithContext("path", path).
			WithSuggestion("check that the file is valid JSON with series and exceptions arrays")
	}

	for _, series := range input.Series {
		if err := series.Validate(); err != nil {
			return nil, corerrors.ValidationError(corerrors.CodeInvalidPattern, "series", err).
				WithContext("series_id", series.ID.String())
		}
	}
	for i := range input.Exceptions {
		if err := input.Exceptions[i].Validate(); err != nil {
			return nil, corerrors.ValidationError(corerrors.CodeInvalidException, "exception", err).
				WithContext("series_id", input.Exceptions[i].SeriesID.String())
		}
	}
	return &input, nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, corerrors.ValidationError(corerrors.CodeInvalidArgument, "--"+name, err).
			WithSuggestion("use the YYYY-MM-DD format, for example 2026-01-31")
	}
	return parsed, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return corerrors.InternalError("encoding output", err)
	}
	return nil
}
