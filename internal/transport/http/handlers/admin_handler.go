package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	adminsvc "github.com/thecompanyunltd/nightvibe/internal/services/admin"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
	httperrors "github.com/thecompanyunltd/nightvibe/internal/transport/http/errors"
)

type AdminHandler struct {
	service *adminsvc.Service
	log     *zap.Logger
}

func NewAdminHandler(service *adminsvc.Service, log *zap.Logger) *AdminHandler {
	return &AdminHandler{service: service, log: log}
}

// ready checks the service and resolves the acting administrator.
func (h *AdminHandler) ready(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.service == nil {
		writeInternal(w, "ADMIN_SERVICE_UNAVAILABLE", "admin service is unavailable")
		return "", false
	}
	id, ok := identity(w, r)
	if !ok {
		return "", false
	}
	return id.UserID, true
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, st)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	q := r.URL.Query()
	page, err := h.service.ListUsers(r.Context(), adminsvc.UserQuery{
		Search:  q.Get("search"),
		Filter:  q.Get("filter"),
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", adminsvc.DefaultPerPage),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *AdminHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	users, err := h.service.SearchByUsernamePrefix(r.Context(), r.URL.Query().Get("prefix"), queryInt(r, "limit", 0))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, map[string][]model.User{"users": users})
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req adminsvc.NewUserInput
	if !decodeRequest(w, r, &req) {
		return
	}
	u, err := h.service.CreateUser(r.Context(), actor, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, u)
}

func (h *AdminHandler) UserDetails(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	detail, err := h.service.UserDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, detail)
}

func (h *AdminHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req adminsvc.UserEdit
	if !decodeRequest(w, r, &req) {
		return
	}
	u, err := h.service.EditUser(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, u)
}

func (h *AdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.service.Block(r.Context(), actor, chi.URLParam(r, "id")))
}

func (h *AdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.service.Unblock(r.Context(), actor, chi.URLParam(r, "id")))
}

// Ban takes a duration such as "1d", "7d", "30d" or "permanent".
func (h *AdminHandler) Ban(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req dto.BanRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	h.respond(w, r, h.service.Ban(r.Context(), actor, chi.URLParam(r, "id"), req.Duration))
}

func (h *AdminHandler) Warn(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req dto.WarnRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	h.respond(w, r, h.service.Warn(r.Context(), actor, chi.URLParam(r, "id"), req.Reason))
}

func (h *AdminHandler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.service.MakeAdmin(r.Context(), actor, chi.URLParam(r, "id")))
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req dto.ConfirmRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	h.respond(w, r, h.service.DeleteUser(r.Context(), actor, chi.URLParam(r, "id"), req.Confirmation))
}

func (h *AdminHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	q := r.URL.Query()
	msgs, err := h.service.ListMessages(r.Context(), adminsvc.MessageQuery{
		Search: q.Get("search"),
		Filter: q.Get("filter"),
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, map[string][]model.Message{"messages": msgs})
}

func (h *AdminHandler) MessageDetails(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	detail, err := h.service.MessageDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, detail)
}

func (h *AdminHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.service.DeleteMessage(r.Context(), actor, chi.URLParam(r, "id")))
}

// DeleteAllMessages requires the "DELETE ALL" phrase. On a failed batch
// the messages already deleted stay deleted.
func (h *AdminHandler) DeleteAllMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req dto.ConfirmRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	deleted, err := h.service.DeleteAllMessages(r.Context(), actor, req.Confirmation)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.DeletedResponse{Deleted: deleted})
}

func (h *AdminHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	reps, err := h.service.ListReports(r.Context(), strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, map[string][]model.Report{"reports": reps})
}

func (h *AdminHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req dto.ResolveReportRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	h.respond(w, r, h.service.ResolveReport(r.Context(), actor, chi.URLParam(r, "id"), req.Resolution))
}

func (h *AdminHandler) DismissReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	h.respond(w, r, h.service.DismissReport(r.Context(), actor, chi.URLParam(r, "id")))
}

func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	st, err := h.service.Settings(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, st)
}

func (h *AdminHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	var req model.Settings
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	st, err := h.service.SaveSettings(r.Context(), actor, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, st)
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.ready(w, r)
	if !ok {
		return
	}
	body, name, err := h.service.Export(r.Context(), actor)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeAttachment(w, name, body)
}

func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, r); !ok {
		return
	}
	entries, err := h.service.AuditLog(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.AuditLog(entries))
}

func (h *AdminHandler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.OKResponse{OK: true})
}

func (h *AdminHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, adminsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", validationMessage(err, adminsvc.ErrValidation))
	case errors.Is(err, adminsvc.ErrConfirmation):
		writeBadRequest(w, "CONFIRMATION_MISMATCH", "Confirmation text did not match.")
	case errors.Is(err, adminsvc.ErrSelfAction):
		writeForbidden(w, "SELF_ACTION", "You cannot do this to your own account.")
	case errors.Is(err, adminsvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "not found")
	case errors.Is(err, authsvc.ErrUsernameTaken):
		writeConflict(w, "USERNAME_TAKEN", authsvc.UserMessage(err))
	case errors.Is(err, authsvc.ErrInvalidInput),
		errors.Is(err, authsvc.ErrInvalidUsername),
		errors.Is(err, authsvc.ErrWeakPassword):
		writeBadRequest(w, "VALIDATION_ERROR", authsvc.UserMessage(err))
	default:
		writeUnexpected(w, r, h.log, err)
	}
}
