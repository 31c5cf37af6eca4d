package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
	httperrors "github.com/thecompanyunltd/nightvibe/internal/transport/http/errors"
)

type AuthHandler struct {
	service *authsvc.Service
	log     *zap.Logger
}

func NewAuthHandler(service *authsvc.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, log: log}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.service.Register(r.Context(), authsvc.RegisterInput{
		Username:           req.Username,
		Password:           req.Password,
		RealName:           req.RealName,
		Phone:              req.Phone,
		Age:                req.Age,
		Position:           req.Position,
		IAmInto:            req.IAmInto,
		RelationshipStatus: req.RelationshipStatus,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	httperrors.Write(w, http.StatusCreated, tokensResponse(res))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, tokensResponse(res))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.RefreshRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, tokensResponse(res))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), id.SID); err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.OKResponse{OK: true})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.OKResponse{OK: true})
}

// DeleteMe removes the caller's account. The body must carry the typed
// confirmation phrase.
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.ConfirmRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if err := h.service.DeleteAccount(r.Context(), id.UserID, req.Confirmation); err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.OKResponse{OK: true})
}

func (h *AuthHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	dest, err := h.service.RedirectFor(r.Context(), id.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeOK(w, dto.RedirectResponse{Redirect: string(dest)})
}

func (h *AuthHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	msg := authsvc.UserMessage(err)
	switch {
	case errors.Is(err, authsvc.ErrInvalidInput),
		errors.Is(err, authsvc.ErrInvalidUsername),
		errors.Is(err, authsvc.ErrWeakPassword):
		writeBadRequest(w, "VALIDATION_ERROR", msg)
	case errors.Is(err, authsvc.ErrConfirmation):
		writeBadRequest(w, "CONFIRMATION_MISMATCH", msg)
	case errors.Is(err, authsvc.ErrUsernameTaken):
		writeConflict(w, "USERNAME_TAKEN", msg)
	case errors.Is(err, authsvc.ErrUserNotFound):
		writeNotFound(w, "USER_NOT_FOUND", msg)
	case errors.Is(err, authsvc.ErrWrongPassword):
		writeUnauthorized(w, "WRONG_PASSWORD", msg)
	case errors.Is(err, authsvc.ErrUnauthorized):
		writeUnauthorized(w, "UNAUTHORIZED", msg)
	case errors.Is(err, authsvc.ErrTooManyRequests):
		httperrors.WriteRateLimited(w, "TOO_MANY_ATTEMPTS", msg, 60)
	case errors.Is(err, authsvc.ErrBlocked):
		writeForbidden(w, "ACCOUNT_BLOCKED", msg)
	case errors.Is(err, authsvc.ErrRegistrationClosed):
		writeForbidden(w, "REGISTRATION_CLOSED", msg)
	default:
		writeUnexpected(w, r, h.log, err)
	}
}

func tokensResponse(res authsvc.AuthResult) dto.AuthTokensResponse {
	return dto.AuthTokensResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresInSec: max(0, int64(time.Until(res.AccessExpires).Seconds())),
		Redirect:     string(res.Redirect),
		Me: dto.AuthMeResponse{
			ID:       res.Me.ID,
			Username: res.Me.Username,
			Role:     res.Me.Role,
		},
	}
}
