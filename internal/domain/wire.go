package domain

// NextQuestionRequest asks the interviewer for the next question.
// UserIntro is only sent with the first request of an interview.
type NextQuestionRequest struct {
	ResumeText  string `json:"resumeText"`
	ChatHistory []Turn `json:"chatHistory"`
	UserIntro   string `json:"userIntro,omitempty"`
}

// NextQuestionResponse carries the interviewer's combined comment and question.
type NextQuestionResponse struct {
	Question string `json:"question"`
}

// EvaluateRequest asks for a score of one answer.
type EvaluateRequest struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	ResumeText string `json:"resumeText"`
}

// Evaluation is the scored verdict on one answer.
type Evaluation struct {
	Score             *float64 `json:"score"`
	Feedback          string   `json:"feedback,omitempty"`
	Strengths         []string `json:"strengths,omitempty"`
	Improvements      []string `json:"improvements,omitempty"`
	FollowUpQuestions []string `json:"followUpQuestions,omitempty"`
}

// InterviewItem is one turn as submitted for the final report.
type InterviewItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Feedback string `json:"feedback"`
}

// ReportRequest asks for the final interview report.
type ReportRequest struct {
	InterviewData []InterviewItem `json:"interviewData"`
	UserName      string          `json:"userName"`
	ResumeText    string          `json:"resumeText"`
}

// ReportResponse carries the generated report text.
type ReportResponse struct {
	Report string `json:"report"`
}

// SpeechResponse is the result of a speech-to-text request.
type SpeechResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResumeAnalysis is the ATS-style verdict on an uploaded résumé.
type ResumeAnalysis struct {
	ResumeText   string   `json:"resumeText"`
	ATSScore     int      `json:"atsScore"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Keywords     []string `json:"keywords,omitempty"`
}

// CareerRequest is a free-form question to the career assistant.
type CareerRequest struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
	Message        string `json:"message"`
}

// CareerResponse is the career assistant's reply.
type CareerResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}
