package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"promptsmith/internal/domain"
	"promptsmith/internal/generation"
	"promptsmith/internal/promptreq"
)

type generateRequest struct {
	Count    *int   `json:"count"`
	Category string `json:"category"`
	Suffix   string `json:"suffix"`
}

// Generate runs one generation against the current image and stored key and
// answers with the resulting outcome.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	count := promptreq.DefaultCount
	if req.Count != nil {
		count = *req.Count
	}

	out, err := a.Generator.Generate(r.Context(), generation.Input{
		Image:    a.Images.Current(),
		Count:    count,
		Category: req.Category,
		Suffix:   req.Suffix,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBusy):
			a.error(w, r, http.StatusConflict, "busy", "a generation is already in progress")
		case errors.Is(err, domain.ErrAuth):
			a.error(w, r, http.StatusUnauthorized, "missing_api_key", domain.UserMessage(err))
		case errors.Is(err, domain.ErrValidation):
			a.error(w, r, http.StatusBadRequest, "missing_image", domain.UserMessage(err))
		default:
			a.logger(r).Error().Err(err).Msg("generate")
			a.error(w, r, http.StatusInternalServerError, "internal", "generation failed")
		}
		return
	}
	a.json(w, outcomeStatus(out), out)
}

func (a *App) GenerationGet(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Generator.Current())
}

func outcomeStatus(out generation.Outcome) int {
	if out.State != generation.StateFailed {
		return http.StatusOK
	}
	switch out.Kind {
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}
