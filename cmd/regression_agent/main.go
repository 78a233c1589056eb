// Package main provides the regression_agent CLI: it captures a baseline
// snapshot of a web application and compares later captures against it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jonathan/regression-baseline/internal/report"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "regression_agent",
	Short: "Baseline snapshot and regression comparison",
	Long: `Captures a baseline snapshot of a running web application (feature presence,
performance timings, masked screenshots, API contracts) and compares later
captures against it.

Exit codes: 0 no regression, 1 regression found, 2 baseline missing, 3 operational error.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// exitError carries the process exit code out of a command. A nil err exits
// silently with code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// operational wraps err as an operational failure.
func operational(err error) error {
	return &exitError{code: report.ExitError, err: err}
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return report.ExitPass
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return report.ExitError
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	err := rootCmd.Execute()
	code := exitCode(err)
	var ee *exitError
	if err != nil && (!errors.As(err, &ee) || ee.err != nil) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
