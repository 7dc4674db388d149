package coach

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ashureev/careermate/internal/domain"
)

var mockQuestions = []string{
	"Walk me through a project on your resume that you are most proud of. What was your role?",
	"Which technical skills do you rely on most, and how did you apply them recently?",
	"How has your education or background prepared you for this kind of role?",
	"Tell me about a time you disagreed with a teammate. How did you handle it?",
	"Describe a hard problem you solved. How did you break it down?",
	"What motivates you in your career, and where do you want to be in a few years?",
}

const mockClosing = "Thank you for your answers. That concludes our interview."

var feedbackOptions = []string{
	"Great answer! You provided specific details and examples that demonstrate your experience.",
	"Good response. Consider adding more specific examples to strengthen your answer.",
	"Solid answer. Try to include quantifiable results or metrics to make it more impactful.",
	"Nice explanation. Adding a brief example would help illustrate your point better.",
	"Well articulated. Consider structuring your response using the STAR method for even better impact.",
}

var digits = regexp.MustCompile(`\d+`)

func mockQuestion(req domain.NextQuestionRequest) string {
	n := len(req.ChatHistory)
	if n >= len(mockQuestions) {
		return mockClosing
	}
	q := mockQuestions[n]
	switch {
	case n == 0 && strings.TrimSpace(req.UserIntro) != "":
		return "Thanks for the introduction. " + q
	case n > 0:
		return "Thanks for sharing that. " + q
	}
	return q
}

// heuristicEvaluation scores an answer by length, examples and numbers.
// The score starts at 6 and is clamped to [4, 10].
func heuristicEvaluation(answer string) domain.Evaluation {
	words := len(strings.Fields(answer))
	lower := strings.ToLower(answer)

	score := 6.0
	if words > 30 {
		score++
	}
	if words > 60 {
		score++
	}
	if strings.Contains(lower, "example") || strings.Contains(lower, "project") {
		score++
	}
	if digits.MatchString(answer) {
		score += 0.5
	}
	if len(answer) > 200 {
		score += 0.5
	}
	score = math.Min(10, math.Max(4, score))
	score = math.Round(score*10) / 10

	return domain.Evaluation{
		Score:    &score,
		Feedback: feedbackOptions[len(answer)%len(feedbackOptions)],
		Strengths: []string{
			"Clear communication",
			"Relevant experience mentioned",
		},
		Improvements: []string{
			"Add more specific examples",
			"Include quantifiable achievements",
		},
		FollowUpQuestions: []string{
			"What challenges did you face and how did you overcome them?",
			"How did you measure the success of this work?",
		},
	}
}

func mockReport(req domain.ReportRequest) string {
	name := req.UserName
	if name == "" {
		name = "Candidate"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Interview Report: %s\n\n", name)
	fmt.Fprintf(&b, "## Overall Assessment\nYou answered %d questions. ", len(req.InterviewData))

	var sum float64
	for _, item := range req.InterviewData {
		sum += *heuristicEvaluation(item.Answer).Score
	}
	if n := len(req.InterviewData); n > 0 {
		fmt.Fprintf(&b, "Your estimated average score is %.1f/10.\n\n", sum/float64(n))
	} else {
		b.WriteString("\n\n")
	}

	b.WriteString("## Question Feedback\n")
	for i, item := range req.InterviewData {
		ev := heuristicEvaluation(item.Answer)
		fmt.Fprintf(&b, "%d. **%s**\n   - Score: %.1f/10\n   - %s\n", i+1, item.Question, *ev.Score, ev.Feedback)
	}
	b.WriteString("\n## Recommendations\n")
	b.WriteString("- Use the STAR method to structure behavioral answers.\n")
	b.WriteString("- Quantify the impact of your work where you can.\n")
	return b.String()
}

func mockAdvice(req domain.CareerRequest) string {
	var b strings.Builder
	b.WriteString("Here is some guidance based on your profile.\n\n")
	if strings.TrimSpace(req.JobDescription) != "" {
		b.WriteString("- Mirror the key skills from the job description in your resume summary.\n")
	}
	b.WriteString("- Lead each resume bullet with a measurable result.\n")
	b.WriteString("- Prepare two project stories that show ownership and impact.\n")
	if msg := strings.TrimSpace(req.Message); msg != "" {
		fmt.Fprintf(&b, "\nOn your question (%q): focus on the experience that maps most directly to the role.\n", msg)
	}
	return b.String()
}

func mockAnalysis(resumeText string) domain.ResumeAnalysis {
	return domain.ResumeAnalysis{
		ResumeText: resumeText,
		ATSScore:   75,
		Feedback:   "Your resume is well structured. Adding measurable achievements would strengthen it.",
		Strengths: []string{
			"Clear section structure",
			"Relevant technical experience",
		},
		Improvements: []string{
			"Quantify achievements with metrics",
			"Tailor keywords to the target role",
		},
		Keywords: []string{},
	}
}
