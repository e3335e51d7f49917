package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"promptsmith/internal/domain"
	"promptsmith/internal/promptreq"
)

type GeminiOptions struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// GeminiClient calls generateContent over the Gemini REST API.
type GeminiClient struct {
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature      float32       `json:"temperature"`
	TopP             float32       `json:"topP"`
	CandidateCount   int           `json:"candidateCount,omitempty"`
	ResponseMimeType string        `json:"responseMimeType,omitempty"`
	ResponseSchema   *genai.Schema `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &GeminiClient{
		model:   model,
		baseURL: baseURL,
		client:  client,
		logger:  opts.Logger,
	}
}

func (g *GeminiClient) Name() string { return geminiProviderName }

func (g *GeminiClient) SupportsSchema() bool { return true }

func (g *GeminiClient) Send(ctx context.Context, req *promptreq.Request, credential string) (string, error) {
	if err := requireRequest(req); err != nil {
		return "", err
	}
	apiKey, err := requireCredential(credential)
	if err != nil {
		return "", err
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: req.Image.MIMEType, Data: req.Image.Data}},
				{Text: req.Instruction},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:    req.Temperature,
			TopP:           req.TopP,
			CandidateCount: 1,
		},
	}
	if req.Mode == promptreq.ModeSchema && req.Schema != nil {
		payload.GenerationConfig.ResponseMimeType = "application/json"
		payload.GenerationConfig.ResponseSchema = req.Schema
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", domain.NewError(domain.KindValidation, "The request could not be encoded.", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), &buf)
	if err != nil {
		return "", domain.NewError(domain.KindValidation, "The request could not be built.", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", transportError(geminiProviderName, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	g.logger.Debug().Str("model", g.model).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("gemini generateContent")
	if resp.StatusCode >= 300 {
		return "", statusError(geminiProviderName, resp)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewError(domain.KindUpstream, "The Gemini response could not be read.", err)
	}
	text := extractGeminiText(out)
	if text == "" {
		return "", domain.NewError(domain.KindUpstream, emptyGeminiReason(out), nil)
	}
	return text, nil
}

func (g *GeminiClient) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}

func extractGeminiText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		if strings.TrimSpace(sb.String()) != "" {
			return sb.String()
		}
	}
	return ""
}

func emptyGeminiReason(resp geminiResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Sprintf("Gemini blocked the request (%s).", resp.PromptFeedback.BlockReason)
	}
	for _, cand := range resp.Candidates {
		if cand.FinishReason != "" && cand.FinishReason != "STOP" {
			return fmt.Sprintf("Gemini returned no text (finish reason %s).", cand.FinishReason)
		}
	}
	return "Gemini returned no text."
}

var _ Client = (*GeminiClient)(nil)
