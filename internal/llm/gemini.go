// Package llm wraps the Gemini API for text generation and audio
// transcription.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ashureev/careermate/internal/domain"
	"github.com/ashureev/careermate/internal/speech"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const transcribePrompt = "Transcribe this audio exactly as spoken. Return only the transcript text with no commentary."

// Gemini generates text and transcripts with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini client using the Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key not configured")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

// Generate returns the model's text reply to prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	})
	if err != nil {
		return "", mapError("generate content", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("generate content: %w: empty model reply", domain.ErrMalformedResponse)
	}
	return text, nil
}

// Transcribe implements speech.Transcriber by sending the clip inline.
func (g *Gemini) Transcribe(ctx context.Context, audio speech.Audio) (string, error) {
	mime := audio.MimeType
	if mime == "" {
		mime = "audio/wav"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcribePrompt),
			genai.NewPartFromBytes(audio.Data, mime),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", mapError("transcribe audio", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("transcribe audio: %w: empty transcript", domain.ErrTranscriptionFailure)
	}
	return text, nil
}

// Markers of a quota failure in errors that do not carry a genai.APIError.
var quotaMarkers = []string{"resource_exhausted", "too many requests", "exceeded your current quota"}

// mapError classifies a Gemini API error. A 429 is a quota failure; every
// other error is treated as a backend failure.
func mapError(op string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return mapAPIError(op, apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return mapAPIError(op, *apiErrPtr)
	}
	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrQuotaExceeded, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrNetworkFailure, err)
}

func mapAPIError(op string, apiErr genai.APIError) error {
	if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrQuotaExceeded, apiErr.Message)
	}
	return fmt.Errorf("%s: %w: %d %s", op, domain.ErrNetworkFailure, apiErr.Code, apiErr.Message)
}
