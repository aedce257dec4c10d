package handlers

import (
	"bufio"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/mydiary/internal/logging"
	"github.com/crucial707/mydiary/internal/middleware"
	"github.com/crucial707/mydiary/internal/models"
	"github.com/crucial707/mydiary/internal/repo"
	"github.com/crucial707/mydiary/internal/storage"
)

// multipartMemory is how much of a diary form is buffered in memory; larger parts spill to disk.
const multipartMemory = 8 << 20

// ==========================
// Diary Handler
// ==========================
type DiaryHandler struct {
	Repo   *repo.DiaryRepo
	Images storage.ImageStore
	Audit  *repo.AuditRepo
	// UploadPrefix is the URL path segment image paths are stored under (e.g. "uploads").
	UploadPrefix string
}

type diaryInput struct {
	Title   string `json:"title" validate:"required,max=255"`
	// max mirrors models.MaxDiaryContent.
	Content string `json:"content" validate:"max=5000"`
}

// ==========================
// List Diaries
// ==========================
func (h *DiaryHandler) ListDiaries(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	// Newest first unless sort=asc.
	asc := r.URL.Query().Get("sort") == "asc"

	diaries, err := h.Repo.ListByUser(r.Context(), userID, asc)
	if err != nil {
		logging.LogError(r.Context(), nil, "list diaries", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, diaries)
}

// ==========================
// Get Diary
// ==========================
func (h *DiaryHandler) GetDiary(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, ok := diaryID(w, r)
	if !ok {
		return
	}

	d, err := h.Repo.GetByID(r.Context(), id, userID)
	if err != nil {
		h.writeRepoError(w, r, "get diary", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ==========================
// Create Diary (multipart: title, content, optional image)
// ==========================
func (h *DiaryHandler) CreateDiary(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		JSONError(w, "expected multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	input := diaryInput{Title: r.FormValue("title"), Content: r.FormValue("content")}
	if err := validate.Struct(input); err != nil {
		JSONValidationError(w, "validation failed", validationFields(err), http.StatusBadRequest)
		return
	}

	imagePath, status, err := h.saveImage(r)
	if err != nil {
		if status == http.StatusInternalServerError {
			logging.LogError(r.Context(), nil, "save diary image", err)
			JSONError(w, ErrMessageInternal, status)
			return
		}
		JSONError(w, err.Error(), status)
		return
	}

	created, err := h.Repo.Create(r.Context(), &models.Diary{
		UserID:    userID,
		Title:     input.Title,
		Content:   input.Content,
		ImagePath: imagePath,
	})
	if err != nil {
		h.removeImage(r, imagePath)
		logging.LogError(r.Context(), nil, "create diary", err)
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	h.audit(r, userID, repo.ActionCreate, created.ID, created.Title)
	writeJSON(w, http.StatusOK, created)
}

// saveImage stores the optional "image" part and returns its public path.
func (h *DiaryHandler) saveImage(r *http.Request) (string, int, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", 0, nil
	}
	if err != nil {
		return "", http.StatusBadRequest, errors.New("invalid image upload")
	}
	defer file.Close()

	br := bufio.NewReaderSize(file, 512)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return "", http.StatusBadRequest, errors.New("image must be an image file")
	}

	key := storage.NewKey(header.Filename, contentType)
	if err := h.Images.Save(r.Context(), key, br, contentType); err != nil {
		return "", http.StatusInternalServerError, err
	}
	return h.prefix() + key, 0, nil
}

// ==========================
// Update Diary
// ==========================
func (h *DiaryHandler) UpdateDiary(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, ok := diaryID(w, r)
	if !ok {
		return
	}

	var input diaryInput
	if err := decodeJSON(r, &input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(input); err != nil {
		JSONValidationError(w, "validation failed", validationFields(err), http.StatusBadRequest)
		return
	}

	updated, err := h.Repo.Update(r.Context(), id, userID, input.Title, input.Content)
	if err != nil {
		h.writeRepoError(w, r, "update diary", err)
		return
	}

	h.audit(r, userID, repo.ActionUpdate, updated.ID, updated.Title)
	writeJSON(w, http.StatusOK, updated)
}

// ==========================
// Delete Diary
// ==========================
func (h *DiaryHandler) DeleteDiary(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())
	id, ok := diaryID(w, r)
	if !ok {
		return
	}

	deleted, err := h.Repo.Delete(r.Context(), id, userID)
	if err != nil {
		h.writeRepoError(w, r, "delete diary", err)
		return
	}
	h.removeImage(r, deleted.ImagePath)

	h.audit(r, userID, repo.ActionDelete, deleted.ID, deleted.Title)
	JSONOK(w, "diary deleted", nil)
}

// ==========================
// Helpers
// ==========================

func diaryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		JSONError(w, "invalid diary id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *DiaryHandler) writeRepoError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		JSONError(w, "diary not found", http.StatusNotFound)
		return
	}
	logging.LogError(r.Context(), nil, msg, err)
	JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
}

func (h *DiaryHandler) prefix() string {
	p := strings.Trim(h.UploadPrefix, "/")
	if p == "" {
		p = "uploads"
	}
	return p + "/"
}

// removeImage deletes a stored image. Failures are logged only; the diary row is authoritative.
func (h *DiaryHandler) removeImage(r *http.Request, imagePath string) {
	if imagePath == "" {
		return
	}
	key := strings.TrimPrefix(imagePath, h.prefix())
	if err := h.Images.Delete(r.Context(), key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.LogError(r.Context(), nil, "delete diary image", err)
	}
}

func (h *DiaryHandler) audit(r *http.Request, userID int64, action string, diaryID int64, details string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Log(r.Context(), userID, action, repo.ResourceDiary, diaryID, details); err != nil {
		logging.LogError(r.Context(), nil, "audit log", err)
	}
}
