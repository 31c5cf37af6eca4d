package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	reportsvc "github.com/thecompanyunltd/nightvibe/internal/services/reports"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
	httperrors "github.com/thecompanyunltd/nightvibe/internal/transport/http/errors"
)

// reportRetryAfterSec is advertised when the filing rate trips.
const reportRetryAfterSec = 60

type ReportHandler struct {
	service *reportsvc.Service
	log     *zap.Logger
}

func NewReportHandler(service *reportsvc.Service, log *zap.Logger) *ReportHandler {
	return &ReportHandler{service: service, log: log}
}

func (h *ReportHandler) File(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "REPORT_SERVICE_UNAVAILABLE", "report service is unavailable")
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req dto.FileReportRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	rep, err := h.service.File(r.Context(), id.UserID, reportsvc.FileInput{
		ReportedUserID: req.ReportedUserID,
		MessageID:      req.MessageID,
		Reasons:        req.Reasons,
		Details:        req.Details,
	})
	if err != nil {
		switch {
		case errors.Is(err, reportsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", validationMessage(err, reportsvc.ErrValidation))
		case errors.Is(err, reportsvc.ErrUserNotFound):
			writeNotFound(w, "USER_NOT_FOUND", "reported user not found")
		case errors.Is(err, reportsvc.ErrRateLimited):
			httperrors.WriteRateLimited(w, "RATE_LIMITED", "Too many reports. Please try again later.", reportRetryAfterSec)
		default:
			writeUnexpected(w, r, h.log, err)
		}
		return
	}
	httperrors.Write(w, http.StatusCreated, dto.ReportResponse{ID: rep.ID, Status: string(rep.Status)})
}
