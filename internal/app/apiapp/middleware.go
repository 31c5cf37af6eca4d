package apiapp

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
	httperrors "github.com/thecompanyunltd/nightvibe/internal/transport/http/errors"
)

const (
	requestTimeout   = 60 * time.Second
	settingsCacheTTL = 5 * time.Second
)

type HTTPMetrics interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

func ApplyMiddlewares(r chiRouter, corsOrigins []string, metrics HTTPMetrics, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(corsOrigins))
	r.Use(requestLogger(log, metrics))
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

// AuthMiddleware resolves the bearer token into an identity. Websocket
// upgrades may pass the token as the access_token query parameter since
// browsers cannot set headers on them.
func AuthMiddleware(authService *authsvc.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authService == nil {
				httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
					Code:    "AUTH_SERVICE_UNAVAILABLE",
					Message: "auth service is unavailable",
				})
				return
			}

			accessToken, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok && isWebsocketUpgrade(r) {
				accessToken = strings.TrimSpace(r.URL.Query().Get("access_token"))
				ok = accessToken != ""
			}
			if !ok {
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				})
				return
			}

			claims, err := authService.ValidateAccessToken(r.Context(), accessToken)
			if err != nil {
				if log != nil {
					log.Debug("auth middleware validation failed", zap.Error(err))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid access token",
				})
				return
			}

			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{
				UserID: claims.UserID,
				SID:    claims.SID,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through identities whose role matches one of roles,
// ignoring case. It must run after AuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := authsvc.IdentityFromContext(r.Context())
			if !ok {
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "authentication required",
				})
				return
			}
			if _, ok := allowed[strings.ToLower(strings.TrimSpace(identity.Role))]; !ok {
				httperrors.Write(w, http.StatusForbidden, httperrors.APIError{
					Code:    "FORBIDDEN",
					Message: "insufficient role",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type SettingsReader interface {
	Get(ctx context.Context) (model.Settings, error)
}

// MaintenanceMiddleware answers 503 with the configured message while
// maintenance mode is on. Settings are cached briefly; a failed read lets
// the request through.
func MaintenanceMiddleware(settings SettingsReader, log *zap.Logger) func(http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		cached  model.Settings
		fetched time.Time
	)
	current := func(ctx context.Context) (model.Settings, bool) {
		mu.Lock()
		defer mu.Unlock()
		if !fetched.IsZero() && time.Since(fetched) < settingsCacheTTL {
			return cached, true
		}
		st, err := settings.Get(ctx)
		if err != nil {
			if log != nil {
				log.Warn("read settings for maintenance check", zap.Error(err))
			}
			return model.Settings{}, false
		}
		cached, fetched = st, time.Now()
		return st, true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if settings == nil {
				next.ServeHTTP(w, r)
				return
			}
			st, ok := current(r.Context())
			if ok && st.MaintenanceMode {
				httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
					Code:    "MAINTENANCE",
					Message: st.MaintenanceMessage,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func requestLogger(log *zap.Logger, metrics HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			if metrics != nil {
				metrics.ObserveHTTP(r.Method, routePattern(r), status, duration)
			}
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Duration("duration", duration),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				)
			}
		})
	}
}

// routePattern keeps metric labels bounded by using the matched chi
// pattern instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}

func writeRouteError(w http.ResponseWriter, status int, code, message string) {
	httperrors.Write(w, status, httperrors.APIError{Code: code, Message: message})
}
