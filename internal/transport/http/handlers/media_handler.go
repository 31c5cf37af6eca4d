package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	mediasvc "github.com/thecompanyunltd/nightvibe/internal/services/media"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
	httperrors "github.com/thecompanyunltd/nightvibe/internal/transport/http/errors"
)

// multipartOverhead leaves room for form fields around the file part.
const multipartOverhead = 1 << 20

type MediaHandler struct {
	service  *mediasvc.Service
	maxBytes int64
	log      *zap.Logger
}

func NewMediaHandler(service *mediasvc.Service, maxPhotoBytes int64, log *zap.Logger) *MediaHandler {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = 10 << 20
	}
	return &MediaHandler{service: service, maxBytes: maxPhotoBytes, log: log}
}

func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	photos, err := h.service.List(r.Context(), id.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Photos(photos))
}

// Upload takes a multipart form with a single "file" part.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httperrors.Write(w, http.StatusRequestEntityTooLarge, httperrors.APIError{
				Code:    "FILE_TOO_LARGE",
				Message: "File is too large.",
			})
			return
		}
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "file is required")
		return
	}
	defer file.Close()

	photo, err := h.service.Upload(r.Context(), id.UserID, header.Filename, file, header.Size, nil)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	photos, err := h.service.List(r.Context(), id.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, dto.PhotoFrom(max(0, len(photos)-1), photo))
}

func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r, "index")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "photo index must be a non-negative integer")
		return
	}

	photos, err := h.service.Delete(r.Context(), id.UserID, index)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Photos(photos))
}

func (h *MediaHandler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r, "index")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "photo index must be a non-negative integer")
		return
	}

	photos, err := h.service.SetPrimary(r.Context(), id.UserID, index)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Photos(photos))
}

func (h *MediaHandler) Onboarding(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	st, err := h.service.OnboardingStatus(r.Context(), id.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.OnboardingResponse{Count: st.Count, Required: st.Required, CanProceed: st.CanProceed})
}

func (h *MediaHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "MEDIA_SERVICE_UNAVAILABLE", "media service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.CompleteOnboarding(r.Context(), id.UserID); err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.OKResponse{OK: true})
}

func (h *MediaHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, mediasvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", validationMessage(err, mediasvc.ErrValidation))
	case errors.Is(err, mediasvc.ErrUnsupportedType):
		httperrors.Write(w, http.StatusUnsupportedMediaType, httperrors.APIError{
			Code:    "UNSUPPORTED_TYPE",
			Message: "Please upload a JPEG, PNG, WebP or GIF image.",
		})
	case errors.Is(err, mediasvc.ErrTooLarge):
		httperrors.Write(w, http.StatusRequestEntityTooLarge, httperrors.APIError{
			Code:    "FILE_TOO_LARGE",
			Message: "File is too large.",
		})
	case errors.Is(err, mediasvc.ErrPhotoLimitReached):
		writeConflict(w, "PHOTO_LIMIT_REACHED", "You have reached the maximum number of photos.")
	case errors.Is(err, mediasvc.ErrOnboardingIncomplete):
		writeConflict(w, "ONBOARDING_INCOMPLETE", validationMessage(err, mediasvc.ErrOnboardingIncomplete))
	case errors.Is(err, mediasvc.ErrNotFound):
		writeNotFound(w, "USER_NOT_FOUND", "user not found")
	default:
		writeUnexpected(w, r, h.log, err)
	}
}
