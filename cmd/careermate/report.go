package main

import (
	"errors"
	"fmt"

	"github.com/ashureev/careermate/internal/interview"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the results of the last completed interview",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resetAll bool

//nolint:gochecknoglobals // Cobra boilerplate
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the saved interview and start over",
	Long: `Clear the saved interview, report and results. The analyzed résumé is
kept unless --all is given.`,
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "Also forget the analyzed résumé")
}

func runReport(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	eng := interview.New(a.client, a.storage)
	defer eng.Close()
	if err := eng.Restore(ctx); err != nil {
		return err
	}

	summary, err := eng.ViewReport(ctx)
	if errors.Is(err, interview.ErrInvalidPhase) {
		return errors.New("no completed interview yet, run `careermate interview` first")
	}
	if err != nil {
		return err
	}
	text, err := eng.Report(ctx)
	if err != nil && !errors.Is(err, interview.ErrReportNotReady) {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary, text)
	return nil
}

func runReset(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	if resetAll {
		n, err := a.db.ClearScope(ctx, a.storage.Scope())
		if err != nil {
			return fmt.Errorf("clear local state: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d saved values.\n", n)
		return nil
	}

	eng := interview.New(a.client, a.storage)
	defer eng.Close()
	if err := eng.Restore(ctx); err != nil {
		return err
	}
	if err := eng.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Interview cleared.")
	return nil
}
