package media

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"clan-manager/internal/apperr"
	"clan-manager/internal/httpx"
)

type UploadHandler struct {
	uploader ImageUploader
}

func NewUploadHandler(uploader ImageUploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// Upload accepts a multipart "file" image and answers with its hosted URL.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		httpx.WriteError(w, r, apperr.Unavailable("image uploads are not configured"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		httpx.WriteError(w, r, apperr.Validation("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, r, apperr.Validation("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		httpx.WriteError(w, r, apperr.Validation("failed to read file"))
		return
	}
	if len(data) == 0 {
		httpx.WriteError(w, r, apperr.Validation("file is empty"))
		return
	}
	if len(data) > MaxImageBytes {
		httpx.WriteError(w, r, apperr.Validation("image must not exceed 5 MB"))
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if _, ok := allowedImageTypes[contentType]; !ok {
		httpx.WriteError(w, r, apperr.Validation("image must be png, jpeg, gif or webp"))
		return
	}

	imageSource := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	secureURL, err := h.uploader.UploadImage(r.Context(), imageSource, "clan-manager/uploads")
	if err != nil {
		httpx.WriteError(w, r, apperr.Upstream("failed to upload image", err))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"secure_url": secureURL})
}
