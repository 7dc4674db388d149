package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ashureev/careermate/internal/domain"
	"google.golang.org/genai"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"api quota", genai.APIError{Code: 429, Message: "Resource exhausted"}, domain.ErrQuotaExceeded},
		{"wrapped api quota", fmt.Errorf("call: %w", genai.APIError{Code: 429}), domain.ErrQuotaExceeded},
		{"api server error", genai.APIError{Code: 500, Message: "internal"}, domain.ErrNetworkFailure},
		{"quota text", errors.New("You exceeded your current quota"), domain.ErrQuotaExceeded},
		{"pointer api quota", fmt.Errorf("call: %w", &genai.APIError{Code: 429}), domain.ErrQuotaExceeded},
		{"api status only", genai.APIError{Status: "RESOURCE_EXHAUSTED"}, domain.ErrQuotaExceeded},
		{"status text", errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED"), domain.ErrQuotaExceeded},
		{"too many requests text", errors.New("429 Too Many Requests"), domain.ErrQuotaExceeded},
		{"digits in request id", errors.New("request 4291 failed: dial tcp 10.0.0.1:4290: i/o timeout"), domain.ErrNetworkFailure},
		{"bare 429 digits", errors.New("upstream returned 429"), domain.ErrNetworkFailure},
		{"transport", errors.New("dial tcp: connection refused"), domain.ErrNetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := mapError("op", tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("mapError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGemini(context.Background(), "", ""); err == nil {
		t.Fatal("expected error without API key")
	}
}
