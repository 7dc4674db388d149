package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/interview"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume-file>",
	Short: "Analyze a résumé and keep it for the interview",
	Long: `Upload a PDF, DOCX or TXT résumé for an ATS-style review. The extracted
text is saved locally and used to tailor the interview questions.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read resume: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	analysis, err := a.client.AnalyzeResume(ctx, filepath.Base(path), data)
	if err != nil {
		return fmt.Errorf("%s: %w", domain.UserMessage(err), err)
	}
	if strings.TrimSpace(analysis.ResumeText) == "" {
		return fmt.Errorf("%s: no text extracted", domain.MsgMalformedResponse)
	}
	if err := a.storage.Set(ctx, interview.KeyResumeText, analysis.ResumeText); err != nil {
		return fmt.Errorf("save resume text: %w", err)
	}

	printAnalysis(cmd.OutOrStdout(), analysis)
	return nil
}
