package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"promptsmith/internal/domain"
	"promptsmith/internal/generation"
	"promptsmith/internal/http/handlers"
	"promptsmith/internal/infra"
	"promptsmith/internal/infra/credentials"
	"promptsmith/internal/promptreq"
	"promptsmith/internal/upload"
)

type stubClient struct {
	calls atomic.Int32
	reply string
	err   error
}

func (s *stubClient) Send(_ context.Context, _ *promptreq.Request, credential string) (string, error) {
	s.calls.Add(1)
	if credential == "" {
		return "", domain.NewError(domain.KindAuth, "API key not provided.", nil)
	}
	return s.reply, s.err
}

func (s *stubClient) SupportsSchema() bool { return true }
func (s *stubClient) Name() string         { return "stub" }

type testEnv struct {
	handler http.Handler
	client  *stubClient
	images  *upload.Holder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &infra.Config{MaxUploadBytes: 1 << 20, RateLimitPerMin: 1000}
	store := credentials.NewStore(credentials.NewMemoryBackend(), zerolog.Nop())
	client := &stubClient{reply: `{"prompts":["A misty harbor at dawn","A neon alley in rain"]}`}
	machine, err := generation.NewMachine(generation.Options{Client: client, Credentials: store, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	images := upload.NewHolder()
	app := handlers.NewApp(cfg, zerolog.Nop(), store, images, machine)
	return &testEnv{handler: NewRouter(app, zerolog.Nop()), client: client, images: images}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) setKey(t *testing.T, key string) {
	t.Helper()
	rr := e.do(t, http.MethodPut, "/v1/credential", strings.NewReader(`{"api_key":"`+key+`"}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT credential status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func (e *testEnv) upload(t *testing.T, filename, contentType string, data []byte) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="`+filename+`"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	rr := e.do(t, http.MethodPost, "/v1/images", &buf, mw.FormDataContentType())
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body=%s", rr.Code, rr.Body.String())
	}
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	return out
}

func decodeOutcome(t *testing.T, rr *httptest.ResponseRecorder) generation.Outcome {
	t.Helper()
	var out generation.Outcome
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/v1/healthz", nil, "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}

func TestCredentialLifecycle(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/v1/credential", nil, "")
	if !strings.Contains(rr.Body.String(), `"present":false`) {
		t.Fatalf("expected absent credential, got %s", rr.Body.String())
	}

	env.setKey(t, "AIzaSyExampleKey1234")
	rr = env.do(t, http.MethodGet, "/v1/credential", nil, "")
	var status struct {
		Present bool   `json:"present"`
		Masked  string `json:"masked"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Present || status.Masked != credentials.Mask("AIzaSyExampleKey1234") {
		t.Fatalf("unexpected status %+v", status)
	}
	if strings.Contains(rr.Body.String(), "AIzaSyExampleKey1234") {
		t.Fatalf("credential leaked in response")
	}

	env.setKey(t, "")
	rr = env.do(t, http.MethodGet, "/v1/credential", nil, "")
	if !strings.Contains(rr.Body.String(), `"present":false`) {
		t.Fatalf("expected cleared credential, got %s", rr.Body.String())
	}

	rr = env.do(t, http.MethodPut, "/v1/credential", strings.NewReader(`{}`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing api_key status = %d", rr.Code)
	}
}

func TestGenerateGuards(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":2}`), "application/json")
	if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "Please enter your Gemini API key first.") {
		t.Fatalf("no key and no image: %d %s", rr.Code, rr.Body.String())
	}

	env.upload(t, "cat.png", "image/png", []byte("png-bytes"))
	rr = env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":2}`), "application/json")
	if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "Please enter your Gemini API key first.") {
		t.Fatalf("no key: %d %s", rr.Code, rr.Body.String())
	}

	env.setKey(t, "key-1234567890")
	env.do(t, http.MethodDelete, "/v1/images", nil, "")
	rr = env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":2}`), "application/json")
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "Please upload an image first.") {
		t.Fatalf("no image: %d %s", rr.Code, rr.Body.String())
	}
	if env.client.calls.Load() != 0 {
		t.Fatalf("guard failures must not call the model, got %d calls", env.client.calls.Load())
	}
	rr = env.do(t, http.MethodGet, "/v1/generation", nil, "")
	if out := decodeOutcome(t, rr); out.State != generation.StateIdle {
		t.Fatalf("state = %s, want idle", out.State)
	}
}

func TestGenerateSuccessAndFailure(t *testing.T) {
	env := newTestEnv(t)
	env.setKey(t, "key-1234567890")
	env.upload(t, "cat.png", "", []byte("png-bytes"))

	rr := env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":2,"category":"Film Noir","suffix":"8k."}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("generate status = %d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeOutcome(t, rr)
	if out.State != generation.StateSucceeded || len(out.Prompts) != 2 || out.Prompts[0] != "A misty harbor at dawn" {
		t.Fatalf("unexpected outcome %+v", out)
	}

	env.client.reply = "not json"
	rr = env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":2}`), "application/json")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("format failure status = %d", rr.Code)
	}
	out = decodeOutcome(t, rr)
	if out.State != generation.StateFailed || out.Kind != domain.KindFormat || len(out.Prompts) != 0 {
		t.Fatalf("unexpected failed outcome %+v", out)
	}

	env.client.err = domain.NewError(domain.KindUpstream, "quota exhausted", nil)
	rr = env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":2}`), "application/json")
	if rr.Code != http.StatusBadGateway || decodeOutcome(t, rr).Message != "quota exhausted" {
		t.Fatalf("upstream failure status = %d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":1001}`), "application/json")
	if rr.Code != http.StatusUnprocessableEntity || decodeOutcome(t, rr).Kind != domain.KindValidation {
		t.Fatalf("out of range count status = %d", rr.Code)
	}
}

func TestUploadReplacesAndReleasesImage(t *testing.T) {
	env := newTestEnv(t)
	env.setKey(t, "key-1234567890")
	first := env.upload(t, "a.jpg", "image/jpeg", []byte("first"))

	preview := first["preview_url"].(string)
	rr := env.do(t, http.MethodGet, preview, nil, "")
	if rr.Code != http.StatusOK || rr.Body.String() != "first" || rr.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("preview = %d %q %q", rr.Code, rr.Body.String(), rr.Header().Get("Content-Type"))
	}

	if rr := env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":1}`), "application/json"); rr.Code != http.StatusOK {
		t.Fatalf("generate status = %d", rr.Code)
	}

	env.upload(t, "b.webp", "image/webp", []byte("second"))
	if rr := env.do(t, http.MethodGet, preview, nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("superseded preview status = %d, want 404", rr.Code)
	}
	if env.images.Live() != 1 {
		t.Fatalf("live references = %d, want 1", env.images.Live())
	}
	if out := decodeOutcome(t, env.do(t, http.MethodGet, "/v1/generation", nil, "")); out.State != generation.StateIdle {
		t.Fatalf("new upload must reset the outcome, got %s", out.State)
	}

	if rr := env.do(t, http.MethodDelete, "/v1/images", nil, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rr.Code)
	}
	if env.images.Live() != 0 || env.images.Current() != nil {
		t.Fatalf("clear must release the image")
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "scan.tiff")
	_, _ = part.Write([]byte("tiff"))
	_ = mw.Close()
	rr := env.do(t, http.MethodPost, "/v1/images", &buf, mw.FormDataContentType())
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415; body=%s", rr.Code, rr.Body.String())
	}
}

func TestGenerationExport(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, http.MethodGet, "/v1/generation/export", nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("export before generation status = %d, want 404", rr.Code)
	}

	env.setKey(t, "key-1234567890")
	env.upload(t, "cat.png", "image/png", []byte("png-bytes"))
	if rr := env.do(t, http.MethodPost, "/v1/generate", strings.NewReader(`{"count":2}`), "application/json"); rr.Code != http.StatusOK {
		t.Fatalf("generate status = %d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/v1/generation/export", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("text export status = %d", rr.Code)
	}
	if want := "1. A misty harbor at dawn\n\n2. A neon alley in rain"; rr.Body.String() != want {
		t.Fatalf("text export = %q, want %q", rr.Body.String(), want)
	}

	rr = env.do(t, http.MethodGet, "/v1/generation/export?format=zip", nil, "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("zip export = %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != 3 || zr.File[2].Name != "prompt-002.txt" {
		t.Fatalf("unexpected archive entries %d", len(zr.File))
	}

	if rr := env.do(t, http.MethodGet, "/v1/generation/export?format=pdf", nil, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad format status = %d", rr.Code)
	}
}
