package handlers

import (
	"encoding/json"
	"net/http"
)

type credentialResponse struct {
	Present bool   `json:"present"`
	Masked  string `json:"masked,omitempty"`
}

type credentialRequest struct {
	APIKey *string `json:"api_key"`
}

func (a *App) CredentialGet(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.credentialStatus(r))
}

// CredentialPut stores the submitted key. An empty key clears it.
func (a *App) CredentialPut(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.APIKey == nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "api_key required")
		return
	}
	if err := a.Credentials.Set(r.Context(), *req.APIKey); err != nil {
		a.logger(r).Error().Err(err).Msg("store credential")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to store api key")
		return
	}
	a.json(w, http.StatusOK, a.credentialStatus(r))
}

func (a *App) credentialStatus(r *http.Request) credentialResponse {
	masked := a.Credentials.Masked(r.Context())
	return credentialResponse{Present: masked != "", Masked: masked}
}
