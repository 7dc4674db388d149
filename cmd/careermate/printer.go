package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/interview"
)

// printer writes each settled chat bubble once. Engine notifications
// arrive from several goroutines.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	printed  map[string]string
	notice   string
	revision uint64
	report   interview.ReportStatus
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, printed: make(map[string]string)}
}

// Render prints bubbles that are new or whose content changed.
func (p *printer) Render(st interview.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.Revision != 0 && st.Revision < p.revision {
		return
	}
	p.revision = st.Revision

	for _, m := range st.Messages {
		if m.IsTyping || m.Content == "" {
			continue
		}
		if prev, ok := p.printed[m.ID]; ok && prev == m.Content {
			continue
		}
		p.printed[m.ID] = m.Content
		fmt.Fprintf(p.w, "%s %s\n", speaker(m), m.Content)
	}

	if st.Notice != p.notice {
		p.notice = st.Notice
		if st.Notice != "" {
			fmt.Fprintln(p.w, "!", st.Notice)
		}
	}

	if st.ReportStatus != p.report {
		p.report = st.ReportStatus
		switch st.ReportStatus {
		case interview.ReportReady:
			fmt.Fprintln(p.w, "Your report is ready. Type /report to see it.")
		case interview.ReportFailed:
			fmt.Fprintln(p.w, "! The report could not be generated.")
		}
	}
}

// Clear forgets what has been printed.
func (p *printer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printed = make(map[string]string)
	p.notice = ""
	p.report = interview.ReportNone
}

func speaker(m domain.ChatMessage) string {
	switch {
	case m.Failed:
		return "[Interviewer !]"
	case m.Role == domain.RoleUser:
		return "[You]"
	default:
		return "[Interviewer]"
	}
}

func printAnalysis(w io.Writer, a domain.ResumeAnalysis) {
	fmt.Fprintf(w, "ATS score: %d/100\n", a.ATSScore)
	if a.Feedback != "" {
		fmt.Fprintf(w, "\n%s\n", a.Feedback)
	}
	printList(w, "Strengths", a.Strengths)
	printList(w, "Improvements", a.Improvements)
	if len(a.Keywords) > 0 {
		fmt.Fprintf(w, "\nKeywords: %s\n", strings.Join(a.Keywords, ", "))
	}
	fmt.Fprintln(w, "\nRésumé saved. Run `careermate interview` to practice.")
}

func printSummary(w io.Writer, s domain.ReportSummary, report string) {
	fmt.Fprintf(w, "Average score: %d/10 (%d of %d answers scored)\n",
		s.AverageScore, s.ScoredQuestions, s.TotalQuestions)
	if s.Duration != "" {
		fmt.Fprintf(w, "Duration: %s\n", s.Duration)
	}
	for i, t := range s.Answers {
		score := "not scored"
		if t.Score != nil {
			score = fmt.Sprintf("%.1f/10", *t.Score)
		}
		fmt.Fprintf(w, "\nQ%d (%s): %s\nA: %s\n", i+1, score, t.Question, t.Answer)
	}
	if report != "" {
		fmt.Fprintf(w, "\n%s\n", report)
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}
