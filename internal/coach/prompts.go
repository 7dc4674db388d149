package coach

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/careermate/internal/domain"
)

func nextQuestionPrompt(req domain.NextQuestionRequest) string {
	var b strings.Builder
	b.WriteString("You are a professional technical interviewer. ")
	b.WriteString("Given the resume and the previous questions and answers, write the next interview question.\n")
	if req.UserIntro != "" && len(req.ChatHistory) == 0 {
		fmt.Fprintf(&b, "The candidate introduced themselves as: %s\n", req.UserIntro)
	}
	b.WriteString("Briefly comment on the most recent answer, if any, then ask the next question. ")
	b.WriteString("Across six questions cover projects/experience, technical skills, education, behavioral skills, problem-solving and motivation without repeating a topic. ")
	b.WriteString("Return only the comment and the question as plain text.\n")
	fmt.Fprintf(&b, "Resume: %s\n", req.ResumeText)
	fmt.Fprintf(&b, "Previous Q&A: %s", mustJSON(req.ChatHistory))
	return b.String()
}

func evaluatePrompt(req domain.EvaluateRequest) string {
	return fmt.Sprintf("You are an expert technical interviewer.\n"+
		"Resume: %s\nInterview Question: %s\nCandidate Answer: %s\n"+
		"Evaluate only this answer for clarity, relevance and depth. "+
		"Respond only with a JSON object with keys score (0-10), feedback (2-3 sentences), strengths, improvements and followUpQuestions.",
		req.ResumeText, req.Question, req.Answer)
}

func reportPrompt(req domain.ReportRequest) string {
	name := req.UserName
	if name == "" {
		name = "N/A"
	}
	return fmt.Sprintf("You are an expert interviewer evaluating a candidate's technical interview.\n"+
		"Candidate Name: %s\n"+
		"Write a report with an overall assessment, strengths, areas for improvement, feedback on each question and recommendations. "+
		"Be professional, direct and constructive.\n"+
		"Interview Data: %s", name, mustJSON(req.InterviewData))
}

func careerPrompt(req domain.CareerRequest) string {
	return fmt.Sprintf("You are an expert career coach. "+
		"Given the resume and job description, give a specific, actionable and encouraging reply to the user's message.\n"+
		"Resume: %s\nJob Description: %s\nUser Message: %s",
		req.ResumeText, req.JobDescription, req.Message)
}

func analysisPrompt(resumeText string) string {
	return "Review this resume as an applicant tracking system would. " +
		"Respond only with a JSON object with keys atsScore (0-100), feedback, strengths, improvements and keywords.\n" +
		"Resume: " + resumeText
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}
