package prompt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"promptsmith/internal/domain"
	"promptsmith/internal/promptreq"
)

type SDKOptions struct {
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// SDKClient sends requests through the google.golang.org/genai SDK. A client
// is built per call because the key arrives with each request.
type SDKClient struct {
	model   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewSDKClient(opts SDKOptions) *SDKClient {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &SDKClient{
		model:   model,
		baseURL: strings.TrimSpace(opts.BaseURL),
		client:  client,
		logger:  opts.Logger,
	}
}

func (s *SDKClient) Name() string { return geminiProviderName }

func (s *SDKClient) SupportsSchema() bool { return true }

func (s *SDKClient) Send(ctx context.Context, req *promptreq.Request, credential string) (string, error) {
	if err := requireRequest(req); err != nil {
		return "", err
	}
	apiKey, err := requireCredential(credential)
	if err != nil {
		return "", err
	}
	data, err := req.Image.Bytes()
	if err != nil {
		return "", err
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.client,
	}
	if s.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", domain.NewError(domain.KindUpstream, "The Gemini client could not be created.", err)
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		{InlineData: &genai.Blob{MIMEType: req.Image.MIMEType, Data: data}},
		genai.NewPartFromText(req.Instruction),
	}, genai.RoleUser)}

	config := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(req.Temperature),
		TopP:           genai.Ptr(req.TopP),
		CandidateCount: 1,
	}
	if req.Mode == promptreq.ModeSchema && req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", sdkError(err)
	}
	s.logger.Debug().Str("model", s.model).Dur("took", time.Since(start)).Msg("gemini sdk generateContent")

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", domain.NewError(domain.KindUpstream, "Gemini returned no text.", nil)
	}
	return text, nil
}

func sdkError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return transportError(geminiProviderName, err)
		}
		apiErr = *ptr
	}
	detail := strings.TrimSpace(apiErr.Message)
	if detail == "" {
		detail = fmt.Sprintf("Gemini answered with status %d.", apiErr.Code)
	}
	if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden || rejectedKey(detail) {
		return domain.NewError(domain.KindAuth, detail, err)
	}
	return domain.NewError(domain.KindUpstream, detail, err)
}

var _ Client = (*SDKClient)(nil)
