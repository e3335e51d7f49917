package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"promptsmith/internal/generation"
	"promptsmith/pkg/zip"
)

// GenerationExport downloads the prompts of the last successful generation as
// numbered text (default) or, with ?format=zip, as an archive holding the
// numbered list plus one file per prompt.
func (a *App) GenerationExport(w http.ResponseWriter, r *http.Request) {
	out := a.Generator.Current()
	if out.State != generation.StateSucceeded || len(out.Prompts) == 0 {
		a.error(w, r, http.StatusNotFound, "not_found", "no prompts to export")
		return
	}
	text := generation.Numbered(out.Prompts)

	switch format := r.URL.Query().Get("format"); format {
	case "", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="prompts.txt"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(text))
	case "zip":
		entries := make([]zip.Entry, 0, len(out.Prompts)+1)
		entries = append(entries, zip.Entry{Name: "prompts.txt", Data: []byte(text)})
		for i, p := range out.Prompts {
			entries = append(entries, zip.Entry{Name: fmt.Sprintf("prompt-%03d.txt", i+1), Data: []byte(p)})
		}
		modified := time.Now().UTC()
		if out.FinishedAt != nil {
			modified = *out.FinishedAt
		}
		data, err := zip.Archive(entries, modified)
		if err != nil {
			a.logger(r).Error().Err(err).Msg("build prompt archive")
			a.error(w, r, http.StatusInternalServerError, "internal", "failed to build archive")
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="prompts.zip"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		a.error(w, r, http.StatusBadRequest, "bad_request", "format must be text or zip")
	}
}
