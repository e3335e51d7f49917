package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"promptsmith/internal/generation"
	"promptsmith/internal/infra"
	"promptsmith/internal/infra/credentials"
	"promptsmith/internal/middleware"
	"promptsmith/internal/upload"
)

const defaultMaxUploadBytes = 20 << 20

// App holds the collaborators the HTTP surface drives.
type App struct {
	Config      *infra.Config
	Logger      infra.Logger
	Credentials *credentials.Store
	Images      *upload.Holder
	Generator   *generation.Machine
}

func NewApp(cfg *infra.Config, logger infra.Logger, store *credentials.Store, images *upload.Holder, gen *generation.Machine) *App {
	return &App{
		Config:      cfg,
		Logger:      logger,
		Credentials: store,
		Images:      images,
		Generator:   gen,
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   message,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}})
}

func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

func (a *App) maxUploadBytes() int64 {
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		return a.Config.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}
