package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/interview"
	"github.com/ashureev/careermate/internal/speech"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var voice bool

//nolint:gochecknoglobals // Cobra boilerplate
var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run or resume the mock interview",
	Long: `Run the mock interview. Type each answer and press Enter.

With --voice, press Enter on an empty line to start recording and Enter
again to stop. The recording is transcribed and submitted as your answer.

Commands:
  /retry   re-request a question that failed to load
  /report  show the results once the interview is complete
  /reset   discard the interview and start over
  /quit    leave; progress is saved`,
	Args: cobra.NoArgs,
	RunE: runInterview,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(interviewCmd)
	interviewCmd.Flags().BoolVar(&voice, "voice", false, "Answer by microphone using ffmpeg")
}

func runInterview(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	eng := interview.New(a.client, a.storage, interview.WithLogger(slog.Default()))
	defer eng.Close()

	p := newPrinter(out)
	unsubscribe := eng.Subscribe(p.Render)
	defer unsubscribe()

	if err := eng.Restore(ctx); err != nil {
		return err
	}

	s := &shell{eng: eng, out: out, printer: p}
	if voice {
		capture, err := a.newCapture(eng)
		if err != nil {
			return err
		}
		defer capture.Close()
		unobserve := eng.Subscribe(func(st interview.State) { capture.Observe(st.WaitingForAnswer) })
		defer unobserve()
		s.capture = capture
	}

	p.Render(eng.State())
	s.hint()
	return s.run(ctx, cmd.InOrStdin())
}

func (a *app) newCapture(sub speech.Submitter) (*speech.Capture, error) {
	var fallbacks []speech.Transcriber
	if a.cfg.FallbackSTT != "" {
		local, err := speech.NewCommandTranscriber(a.cfg.FallbackSTT)
		if err != nil {
			return nil, fmt.Errorf("fallback recognizer: %w", err)
		}
		fallbacks = append(fallbacks, local)
	}
	rec := speech.NewFFMPEGRecorder(a.cfg.FFMPEG, a.cfg.AudioFormat, a.cfg.AudioDevice)
	return speech.NewCapture(rec, speech.Chain(a.client, fallbacks...), sub,
		speech.WithCaptureLogger(slog.Default())), nil
}

// shell routes terminal input to the engine.
type shell struct {
	eng     *interview.Engine
	capture *speech.Capture
	out     io.Writer
	printer *printer
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nProgress saved.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.handle(ctx, line); quit {
				fmt.Fprintln(s.out, "Progress saved.")
				return nil
			}
		}
	}
}

// handle processes one input line and reports whether to quit.
func (s *shell) handle(ctx context.Context, line string) bool {
	text := strings.TrimSpace(line)
	switch text {
	case "/quit", "/exit":
		return true
	case "/retry":
		s.report(s.eng.Retry(ctx))
		return false
	case "/reset":
		if s.capture != nil {
			s.capture.Abort()
		}
		s.report(s.eng.Reset(ctx))
		s.printer.Clear()
		s.printer.Render(s.eng.State())
		s.hint()
		return false
	case "/report":
		s.showReport(ctx)
		return false
	}

	st := s.eng.State()
	switch st.Phase {
	case domain.PhaseAwaitingIntro:
		s.report(s.eng.SubmitIntro(ctx, text))
	case domain.PhaseNotStarted:
		s.report(s.eng.Start(ctx))
	case domain.PhaseInProgress:
		if text == "" && s.capture != nil {
			s.toggleRecording(ctx)
			return false
		}
		s.report(s.eng.SubmitAnswer(ctx, text))
	case domain.PhaseCompleted:
		fmt.Fprintln(s.out, "The interview is complete. Type /report for results or /reset to start over.")
	}
	return false
}

func (s *shell) toggleRecording(ctx context.Context) {
	switch s.capture.Status() {
	case speech.StatusIdle:
		if !s.eng.State().WaitingForAnswer {
			fmt.Fprintln(s.out, "Wait for the next question before recording.")
			return
		}
		if err := s.capture.Begin(ctx); err != nil {
			s.report(err)
			return
		}
		fmt.Fprintln(s.out, "Recording... press Enter to stop.")
	case speech.StatusRecording:
		fmt.Fprintln(s.out, "Transcribing...")
		text, err := s.capture.End(ctx)
		if text != "" {
			fmt.Fprintf(s.out, "Heard: %s\n", text)
		}
		s.report(err)
	default:
		fmt.Fprintln(s.out, "Still processing the last recording.")
	}
}

func (s *shell) showReport(ctx context.Context) {
	summary, err := s.eng.ViewReport(ctx)
	if err != nil {
		s.report(err)
		return
	}
	text, err := s.eng.Report(ctx)
	if err != nil && !errors.Is(err, interview.ErrReportNotReady) {
		s.report(err)
		return
	}
	printSummary(s.out, summary, text)
}

func (s *shell) hint() {
	st := s.eng.State()
	switch st.Phase {
	case domain.PhaseAwaitingIntro:
		fmt.Fprintln(s.out, "Introduce yourself to begin.")
	case domain.PhaseNotStarted:
		fmt.Fprintln(s.out, "Press Enter to start the interview.")
	case domain.PhaseInProgress:
		if s.capture != nil {
			fmt.Fprintln(s.out, "Type your answer, or press Enter to record it.")
		}
	}
}

func (s *shell) report(err error) {
	if err == nil {
		return
	}
	slog.Debug("Interview action failed", "error", err)
	msg := errorText(err)
	if msg == s.eng.State().Notice {
		// Already printed from the state notice.
		return
	}
	fmt.Fprintln(s.out, "!", msg)
}

func errorText(err error) string {
	switch {
	case errors.Is(err, interview.ErrEmptyInput):
		return "Please type something first."
	case errors.Is(err, interview.ErrNotAcceptingAnswers):
		return "Please wait for the next question."
	case errors.Is(err, interview.ErrSubmissionInFlight):
		return "Your previous answer is still being processed."
	case errors.Is(err, interview.ErrNothingToRetry):
		return "There is nothing to retry."
	case errors.Is(err, interview.ErrInvalidPhase):
		return "That is not available right now."
	case errors.Is(err, interview.ErrReportNotReady):
		return "The report is not ready yet."
	case errors.Is(err, speech.ErrCaptureBusy):
		return "Already recording."
	}
	return domain.UserMessage(err)
}
