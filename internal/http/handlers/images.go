package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"promptsmith/internal/imageenc"
	"promptsmith/internal/upload"
)

const imageField = "image"

type imageResponse struct {
	Ref        string `json:"ref"`
	PreviewURL string `json:"preview_url"`
	MIMEType   string `json:"mime_type"`
	Filename   string `json:"filename,omitempty"`
	Size       int    `json:"size"`
}

// ImageUpload replaces the current image with the multipart "image" field and
// resets any previous generation outcome.
func (a *App) ImageUpload(w http.ResponseWriter, r *http.Request) {
	limit := a.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, r, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("image exceeds %d bytes", limit))
			return
		}
		a.error(w, r, http.StatusBadRequest, "bad_request", "multipart form with an image field required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()
	file, header, err := r.FormFile(imageField)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "image required")
		return
	}
	defer file.Close()

	mimeType := upload.DetectMIMEType(header.Header.Get("Content-Type"), header.Filename)
	if !imageenc.Supported(mimeType) {
		a.error(w, r, http.StatusUnsupportedMediaType, "unsupported_media_type", "use a PNG, JPEG, GIF or WEBP image")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "image could not be read")
		return
	}
	if int64(len(data)) > limit {
		a.error(w, r, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("image exceeds %d bytes", limit))
		return
	}
	if len(data) == 0 {
		a.error(w, r, http.StatusBadRequest, "bad_request", "image is empty")
		return
	}

	img := a.Images.Replace(upload.Image{
		Filename: header.Filename,
		MIMEType: mimeType,
		Data:     data,
	})
	a.Generator.Reset()
	a.logger(r).Info().Str("image_id", img.ID).Str("mime_type", mimeType).Int("size", len(data)).Msg("image replaced")
	a.json(w, http.StatusCreated, toImageResponse(img))
}

// ImageClear drops the current image and its display reference.
func (a *App) ImageClear(w http.ResponseWriter, r *http.Request) {
	a.Images.Clear()
	a.Generator.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ImagePreview(w http.ResponseWriter, r *http.Request) {
	img, ok := a.Images.Lookup(chi.URLParam(r, "ref"))
	if !ok {
		a.error(w, r, http.StatusNotFound, "not_found", "image reference is no longer valid")
		return
	}
	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(img.Size()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func toImageResponse(img *upload.Image) imageResponse {
	return imageResponse{
		Ref:        img.Ref,
		PreviewURL: "/v1/images/preview/" + img.Ref,
		MIMEType:   img.MIMEType,
		Filename:   img.Filename,
		Size:       img.Size(),
	}
}
