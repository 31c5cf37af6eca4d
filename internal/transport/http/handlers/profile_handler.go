package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	profilesvc "github.com/thecompanyunltd/nightvibe/internal/services/profiles"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
)

type ProfileHandler struct {
	service *profilesvc.Service
	log     *zap.Logger
}

func NewProfileHandler(service *profilesvc.Service, log *zap.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, log: log}
}

func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	u, err := h.service.Me(r.Context(), id.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Me(u))
}

func (h *ProfileHandler) UpdateStats(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.UpdateStatsRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	u, err := h.service.UpdateStats(r.Context(), id.UserID, profilesvc.StatsUpdate{
		Age:                req.Age,
		Position:           req.Position,
		IAmInto:            req.IAmInto,
		RelationshipStatus: req.RelationshipStatus,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Me(u))
}

func (h *ProfileHandler) UpdateAbout(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.UpdateAboutRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	u, err := h.service.UpdateAbout(r.Context(), id.UserID, req.About)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Me(u))
}

func (h *ProfileHandler) SetPreference(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.PreferenceRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	u, err := h.service.SetPreference(r.Context(), id.UserID, chi.URLParam(r, "name"), *req.Value)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Me(u))
}

func (h *ProfileHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	body, name, err := h.service.ExportOwnData(r.Context(), id.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeAttachment(w, name, body)
}

// List browses the directory. Query parameters age ("min-max"), position
// and status narrow the result.
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	users, err := h.service.Browse(r.Context(), id.UserID, profilesvc.Filter{
		Age:      strings.TrimSpace(q.Get("age")),
		Position: strings.TrimSpace(q.Get("position")),
		Status:   strings.TrimSpace(q.Get("status")),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Profiles(users))
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	p, err := h.service.View(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.Profile(p))
}

func (h *ProfileHandler) SetViewTarget(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.ViewTargetRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.service.SetViewTarget(r.Context(), id.SID, req.ProfileID); err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.ViewTargetResponse{ProfileID: strings.TrimSpace(req.ProfileID)})
}

func (h *ProfileHandler) ViewTarget(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PROFILE_SERVICE_UNAVAILABLE", "profile service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	target, err := h.service.ViewTarget(r.Context(), id.SID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.ViewTargetResponse{ProfileID: target})
}

func (h *ProfileHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profilesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", validationMessage(err, profilesvc.ErrValidation))
	case errors.Is(err, profilesvc.ErrNotFound):
		writeNotFound(w, "PROFILE_NOT_FOUND", "profile not found")
	default:
		writeUnexpected(w, r, h.log, err)
	}
}
