package cmd

import (
	"fmt"
	"os"

	"recurring-reconciliation-service/cmd/reconciler/config"
	"recurring-reconciliation-service/pkg/errors"
	"recurring-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler turns engine errors into user-facing messages and exit
// codes.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a handler using the configured logger.
func NewCLIErrorHandler() *CLIErrorHandler {
	log, err := config.LoadLogger(viper.GetViper())
	if err != nil {
		log = logger.Discard()
	}
	return &CLIErrorHandler{
		logger:  log.WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints the error and returns the process exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if typed, ok := errors.As(err); ok {
		return h.handleTypedError(typed)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleTypedError(err *errors.Error) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if h.verbose {
		fmt.Fprintf(os.Stderr, "\nRun with --verbose for more details, or check the input files.\n")
	}
	return 1
}

func categoryHelp(category errors.Category) string {
	switch category {
	case errors.CategoryValidation:
		return "Help: check the series definitions and command arguments for invalid values."
	case errors.CategoryConfiguration:
		return "Help: check the config file, flags and RECONCILER_* environment variables."
	case errors.CategoryConflict:
		return "Help: the transaction or instance is already claimed; reject or unlink the existing match first."
	case errors.CategoryNotFound:
		return "Help: verify the id and that the record still exists."
	case errors.CategoryMatching:
		return "Help: the reconciliation pass did not complete; rerun it once the cause is resolved."
	default:
		return "Help: rerun with --verbose for diagnostic details."
	}
}
