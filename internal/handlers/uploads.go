package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/mydiary/internal/logging"
	"github.com/crucial707/mydiary/internal/storage"
)

// ==========================
// Upload Handler (serves stored diary images)
// ==========================
type UploadHandler struct {
	Images storage.ImageStore
}

func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !storage.ValidKey(key) {
		http.NotFound(w, r)
		return
	}

	obj, err := h.Images.Open(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logging.LogError(r.Context(), nil, "open image", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	defer obj.Body.Close()

	// Only image types are served inline.
	contentType := obj.ContentType
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.Copy(w, obj.Body)
}
