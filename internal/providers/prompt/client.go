package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"promptsmith/internal/domain"
	"promptsmith/internal/infra"
	"promptsmith/internal/promptreq"
)

const (
	geminiProviderName = "gemini"
	openAIProviderName = "openai"

	defaultTimeout = 120 * time.Second

	// maxErrorBody bounds how much of a failed response body is kept as
	// diagnostic text.
	maxErrorBody = 4 << 10
)

// Client sends one built request to a hosted model and returns the raw text of
// its answer. The credential is passed on every call and never cached.
type Client interface {
	Send(ctx context.Context, req *promptreq.Request, credential string) (string, error)
	// SupportsSchema reports whether the surface honors a response schema.
	SupportsSchema() bool
	Name() string
}

// New selects the Client implementation configured in cfg.
func New(cfg *infra.Config, httpClient *http.Client, logger zerolog.Logger) (Client, error) {
	switch cfg.PromptProvider {
	case infra.ProviderOpenAI:
		return NewOpenAIClient(OpenAIOptions{
			Model:      cfg.OpenAIModel,
			BaseURL:    cfg.OpenAIBaseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}), nil
	case infra.ProviderGemini, "":
		if cfg.GenerationTransport == infra.TransportSDK {
			return NewSDKClient(SDKOptions{
				Model:      cfg.GeminiModel,
				BaseURL:    cfg.GeminiSDKBaseURL,
				HTTPClient: httpClient,
				Logger:     logger,
			}), nil
		}
		return NewGeminiClient(GeminiOptions{
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported prompt provider %q", cfg.PromptProvider)
	}
}

func requireCredential(credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", domain.NewError(domain.KindAuth, "API key not provided.", nil)
	}
	return credential, nil
}

func requireRequest(req *promptreq.Request) error {
	if req == nil {
		return domain.NewError(domain.KindValidation, "No request to send.", nil)
	}
	return nil
}

func transportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindUpstream, fmt.Sprintf("The %s request timed out.", provider), err)
	}
	return domain.NewError(domain.KindUpstream, fmt.Sprintf("The %s request failed: %v", provider, err), err)
}

type apiErrorEnvelope struct {
	Error struct {
		Code    json.RawMessage `json:"code,omitempty"`
		Message string          `json:"message,omitempty"`
		Status  string          `json:"status,omitempty"`
	} `json:"error"`
}

// statusError classifies a non-2xx response. The message is whatever the
// endpoint said: the error envelope's message, else the raw body, else the
// status line.
func statusError(provider string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := ""
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil {
		detail = strings.TrimSpace(envelope.Error.Message)
	}
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}
	if detail == "" {
		detail = resp.Status
	}
	cause := fmt.Errorf("%s status %d", provider, resp.StatusCode)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || rejectedKey(detail) {
		return domain.NewError(domain.KindAuth, detail, cause)
	}
	return domain.NewError(domain.KindUpstream, detail, cause)
}

// rejectedKey catches the Gemini API, which answers an invalid key with 400.
func rejectedKey(detail string) bool {
	detail = strings.ToLower(detail)
	return strings.Contains(detail, "api key not valid") || strings.Contains(detail, "api_key_invalid")
}
