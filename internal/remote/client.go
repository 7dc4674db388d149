// Package remote is the HTTP client for the CareerMate backend REST API.
// It validates every response and maps failures onto the domain error
// taxonomy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/identity"
	"github.com/ashureev/careermate/internal/speech"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodySize    = 4 << 20
	maxMessageLen  = 200
)

// Client calls the backend's interview, speech and résumé endpoints.
//
// The backend identifies devices by an anonymous cookie. The client sends
// it on every request and adopts the one the server sets, so all calls
// share one user and session scope. A cookie jar would drop the cookie
// when a production server marks it Secure and is reached over plain HTTP.
type Client struct {
	baseURL   string
	client    *http.Client
	sessionID string

	mu     sync.Mutex
	anonID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithAnonID resumes a previously issued anonymous identity.
func WithAnonID(id string) Option {
	return func(c *Client) {
		if identity.IsValidAnonID(id) {
			c.anonID = id
		}
	}
}

// WithSessionID sets the session scope sent with every request.
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnonID returns the anonymous identity the backend knows this client by,
// or "" before the first response.
func (c *Client) AnonID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anonID
}

func (c *Client) adoptIdentity(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name == identity.AnonCookieName && identity.IsValidAnonID(ck.Value) {
			c.mu.Lock()
			c.anonID = ck.Value
			c.mu.Unlock()
			return
		}
	}
}

// NextQuestion implements interview.Service.
func (c *Client) NextQuestion(ctx context.Context, req domain.NextQuestionRequest) (string, error) {
	var resp domain.NextQuestionResponse
	if err := c.postJSON(ctx, "/api/interview/next-question", req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Question) == "" {
		return "", fmt.Errorf("next question: %w: missing question", domain.ErrMalformedResponse)
	}
	return resp.Question, nil
}

// Evaluate implements interview.Service. The score must be a number in
// [0, 10].
func (c *Client) Evaluate(ctx context.Context, req domain.EvaluateRequest) (domain.Evaluation, error) {
	var resp domain.Evaluation
	if err := c.postJSON(ctx, "/api/interview/evaluate", req, &resp); err != nil {
		return domain.Evaluation{}, err
	}
	if resp.Score == nil {
		return domain.Evaluation{}, fmt.Errorf("evaluate: %w: missing score", domain.ErrMalformedResponse)
	}
	if s := *resp.Score; s < 0 || s > 10 {
		return domain.Evaluation{}, fmt.Errorf("evaluate: %w: score %v out of range", domain.ErrMalformedResponse, s)
	}
	return resp, nil
}

// Report implements interview.Service.
func (c *Client) Report(ctx context.Context, req domain.ReportRequest) (string, error) {
	var resp domain.ReportResponse
	if err := c.postJSON(ctx, "/api/interview/report", req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Report) == "" {
		return "", fmt.Errorf("report: %w: missing report", domain.ErrMalformedResponse)
	}
	return resp.Report, nil
}

// CareerAdvice asks the career assistant a question.
func (c *Client) CareerAdvice(ctx context.Context, req domain.CareerRequest) (string, error) {
	var resp domain.CareerResponse
	if err := c.postJSON(ctx, "/api/career-assistant", req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Response) == "" {
		return "", fmt.Errorf("career assistant: %w: missing response", domain.ErrMalformedResponse)
	}
	return resp.Response, nil
}

// Transcribe implements speech.Transcriber against /api/speech-to-text.
func (c *Client) Transcribe(ctx context.Context, audio speech.Audio) (string, error) {
	filename := audio.Filename
	if filename == "" {
		filename = "recording.wav"
	}
	body, contentType, err := multipartBody("audio", filename, audio.Data)
	if err != nil {
		return "", err
	}

	data, err := c.send(ctx, "/api/speech-to-text", contentType, body)
	var resp domain.SpeechResponse
	if err != nil {
		if errors.Is(err, domain.ErrNetworkFailure) && json.Unmarshal(data, &resp) == nil && !resp.Success && resp.Error != "" {
			return "", fmt.Errorf("speech to text: %w: %s", domain.ErrTranscriptionFailure, resp.Error)
		}
		return "", err
	}
	if err := decode("/api/speech-to-text", data, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("speech to text: %w: %s", domain.ErrTranscriptionFailure, resp.Error)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("speech to text: %w: empty transcript", domain.ErrTranscriptionFailure)
	}
	return strings.TrimSpace(resp.Text), nil
}

// AnalyzeResume uploads a résumé file to /api/analyze-resume.
func (c *Client) AnalyzeResume(ctx context.Context, filename string, data []byte) (domain.ResumeAnalysis, error) {
	body, contentType, err := multipartBody("resume", filename, data)
	if err != nil {
		return domain.ResumeAnalysis{}, err
	}
	raw, err := c.send(ctx, "/api/analyze-resume", contentType, body)
	if err != nil {
		return domain.ResumeAnalysis{}, err
	}
	var resp domain.ResumeAnalysis
	if err := decode("/api/analyze-resume", raw, &resp); err != nil {
		return domain.ResumeAnalysis{}, err
	}
	if strings.TrimSpace(resp.ResumeText) == "" {
		return domain.ResumeAnalysis{}, fmt.Errorf("analyze resume: %w: missing resume text", domain.ErrMalformedResponse)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", path, err)
	}
	data, err := c.send(ctx, path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return decode(path, data, out)
}

// send performs the request. On a non-2xx status the body is returned
// along with the error.
func (c *Client) send(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.sessionID != "" {
		req.Header.Set(identity.SessionHeaderName, c.sessionID)
	}
	if id := c.AnonID(); id != "" {
		req.AddCookie(&http.Cookie{Name: identity.AnonCookieName, Value: id})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w: %w", path, domain.ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.adoptIdentity(resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w: %w", path, domain.ErrNetworkFailure, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return data, fmt.Errorf("%s: %w: %s", path, domain.ErrQuotaExceeded, serverMessage(data))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return data, fmt.Errorf("%s returned %d: %w: %s", path, resp.StatusCode, domain.ErrNetworkFailure, serverMessage(data))
	}
	return data, nil
}

func decode(path string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s response: %w: %w", path, domain.ErrMalformedResponse, err)
	}
	return nil
}

func serverMessage(data []byte) string {
	var e domain.ErrorResponse
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(data))
	if utf8.RuneCountInString(msg) > maxMessageLen {
		msg = string([]rune(msg)[:maxMessageLen])
	}
	return msg
}

func multipartBody(field, filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", fmt.Errorf("creating multipart %s field: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("writing multipart %s field: %w", field, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
