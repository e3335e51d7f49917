package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"promptsmith/internal/domain"
	"promptsmith/internal/promptreq"
)

const defaultOpenAIModel = "gpt-4o-mini"

type OpenAIOptions struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint. Such
// endpoints are not assumed to honor a response schema, so requests built for
// it are parsed best-effort.
type OpenAIClient struct {
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float32         `json:"temperature"`
	TopP        float32         `json:"top_p"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAIClient{
		model:   model,
		baseURL: baseURL,
		client:  client,
		logger:  opts.Logger,
	}
}

func (o *OpenAIClient) Name() string { return openAIProviderName }

func (o *OpenAIClient) SupportsSchema() bool { return false }

func (o *OpenAIClient) Send(ctx context.Context, req *promptreq.Request, credential string) (string, error) {
	if err := requireRequest(req); err != nil {
		return "", err
	}
	apiKey, err := requireCredential(credential)
	if err != nil {
		return "", err
	}

	payload := openAIChatRequest{
		Model:       o.model,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIContentPart{
				{Type: "image_url", ImageURL: &openAIImageURL{URL: req.Image.DataURL()}},
				{Type: "text", Text: req.Instruction},
			},
		}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", domain.NewError(domain.KindValidation, "The request could not be encoded.", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", domain.NewError(domain.KindValidation, "The request could not be built.", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", transportError(openAIProviderName, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	o.logger.Debug().Str("model", o.model).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("openai chat completion")
	if resp.StatusCode >= 300 {
		return "", statusError(openAIProviderName, resp)
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewError(domain.KindUpstream, "The OpenAI response could not be read.", err)
	}
	for _, choice := range out.Choices {
		if strings.TrimSpace(choice.Message.Content) != "" {
			return choice.Message.Content, nil
		}
	}
	return "", domain.NewError(domain.KindUpstream, "OpenAI returned no text.", nil)
}

var _ Client = (*OpenAIClient)(nil)
