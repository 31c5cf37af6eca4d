package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/pkg/validate"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
	httperrors "github.com/thecompanyunltd/nightvibe/internal/transport/http/errors"
)

const maxJSONBody = 1 << 20

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// decodeRequest reads and validates a JSON body. It writes the 400
// response itself and reports whether the handler may continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeJSON(r, target); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return false
	}
	if err := validate.Struct(target); err != nil {
		var fields validate.FieldErrors
		if errors.As(err, &fields) {
			httperrors.Write(w, http.StatusBadRequest, httperrors.FieldsError{
				Code:    "VALIDATION_ERROR",
				Message: fields.Error(),
				Fields:  fields,
			})
			return false
		}
		writeBadRequest(w, "VALIDATION_ERROR", "request validation failed")
		return false
	}
	return true
}

func identity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	id, ok := authsvc.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(id.UserID) == "" {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return authsvc.Identity{}, false
	}
	return id, true
}

func pathIndex(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func writeOK(w http.ResponseWriter, payload any) {
	httperrors.Write(w, http.StatusOK, payload)
}

func writeAttachment(w http.ResponseWriter, fileName string, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeForbidden(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusForbidden, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeConflict(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

// writeUnexpected logs err once and answers with a generic 500.
func writeUnexpected(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if log != nil {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeInternal(w, "INTERNAL_ERROR", "internal server error")
}

// validationMessage strips the sentinel prefix from a wrapped validation
// error so only the detail reaches the client.
func validationMessage(err error, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return msg
}
