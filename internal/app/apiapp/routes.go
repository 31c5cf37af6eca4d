package apiapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/thecompanyunltd/nightvibe/internal/config"
	"github.com/thecompanyunltd/nightvibe/internal/infra/metrics"
	adminsvc "github.com/thecompanyunltd/nightvibe/internal/services/admin"
	authsvc "github.com/thecompanyunltd/nightvibe/internal/services/auth"
	mediasvc "github.com/thecompanyunltd/nightvibe/internal/services/media"
	"github.com/thecompanyunltd/nightvibe/internal/services/messaging"
	profilesvc "github.com/thecompanyunltd/nightvibe/internal/services/profiles"
	reportsvc "github.com/thecompanyunltd/nightvibe/internal/services/reports"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService      *authsvc.Service
	ProfileService   *profilesvc.Service
	MessagingService *messaging.Service
	ReportService    *reportsvc.Service
	MediaService     *mediasvc.Service
	AdminService     *adminsvc.Service
	Settings         SettingsReader
	AuthLimiter      *IPRateLimiter
	Metrics          *metrics.Registry
	HealthChecks     map[string]handlers.Pinger
	Logger           *zap.Logger
	Config           config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	log := deps.Logger
	authHandler := handlers.NewAuthHandler(deps.AuthService, log)
	profileHandler := handlers.NewProfileHandler(deps.ProfileService, log)
	messagesHandler := handlers.NewMessagesHandler(deps.MessagingService, deps.ProfileService, log)
	streamHandler := handlers.NewStreamHandler(deps.MessagingService, deps.Metrics, deps.Config.HTTP.CORSOrigins, log)
	reportHandler := handlers.NewReportHandler(deps.ReportService, log)
	mediaHandler := handlers.NewMediaHandler(deps.MediaService, deps.Config.Media.MaxPhotoBytes, log)
	adminHandler := handlers.NewAdminHandler(deps.AdminService, log)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)

	authMW := AuthMiddleware(deps.AuthService, log)
	maintenanceMW := MaintenanceMiddleware(deps.Settings, log)
	authLimiter := deps.AuthLimiter
	if authLimiter == nil {
		authLimiter = NewIPRateLimiter(deps.Config.HTTP.AuthRatePerMin, log)
	}

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// The stream is long-lived and stays outside the request timeout.
	r.With(authMW, maintenanceMW).Get("/v1/messages/stream", streamHandler.Serve)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))

		r.Get("/healthz", healthHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.With(maintenanceMW).Post("/v1/auth/register", authHandler.Register)
			r.Post("/v1/auth/login", authHandler.Login)
			r.Post("/v1/auth/refresh", authHandler.Refresh)
			r.With(authMW).Post("/v1/auth/logout", authHandler.Logout)
			r.With(authMW).Post("/v1/auth/password", authHandler.ChangePassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Use(maintenanceMW)

			r.Get("/v1/me", profileHandler.Me)
			r.Delete("/v1/me", authHandler.DeleteMe)
			r.Get("/v1/me/redirect", authHandler.Redirect)
			r.Patch("/v1/me/stats", profileHandler.UpdateStats)
			r.Patch("/v1/me/about", profileHandler.UpdateAbout)
			r.Put("/v1/me/preferences/{name}", profileHandler.SetPreference)
			r.Get("/v1/me/export", profileHandler.Export)

			r.Get("/v1/profiles", profileHandler.List)
			r.Get("/v1/profiles/{id}", profileHandler.Get)
			r.Put("/v1/view-target", profileHandler.SetViewTarget)
			r.Get("/v1/view-target", profileHandler.ViewTarget)

			r.Get("/v1/conversations", messagesHandler.Conversations)
			r.Get("/v1/conversations/{id}", messagesHandler.Conversation)
			r.Post("/v1/conversations/{id}/read", messagesHandler.MarkRead)
			r.Post("/v1/messages", messagesHandler.Send)

			r.Post("/v1/reports", reportHandler.File)

			r.Get("/v1/photos", mediaHandler.List)
			r.Post("/v1/photos", mediaHandler.Upload)
			r.Delete("/v1/photos/{index}", mediaHandler.Delete)
			r.Post("/v1/photos/{index}/primary", mediaHandler.SetPrimary)
			r.Get("/v1/onboarding", mediaHandler.Onboarding)
			r.Post("/v1/onboarding/complete", mediaHandler.CompleteOnboarding)
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(authMW)

			r.Group(func(r chi.Router) {
				r.Use(RequireRole("admin", "moderator"))
				r.Get("/stats", adminHandler.Stats)
				r.Get("/messages", adminHandler.ListMessages)
				r.Get("/messages/{id}", adminHandler.MessageDetails)
				r.Delete("/messages/{id}", adminHandler.DeleteMessage)
				r.Get("/reports", adminHandler.ListReports)
				r.Post("/reports/{id}/resolve", adminHandler.ResolveReport)
				r.Post("/reports/{id}/dismiss", adminHandler.DismissReport)
			})

			r.Group(func(r chi.Router) {
				r.Use(RequireRole("admin"))
				r.Delete("/messages", adminHandler.DeleteAllMessages)

				r.Get("/users", adminHandler.ListUsers)
				r.Get("/users/search", adminHandler.SearchUsers)
				r.Post("/users", adminHandler.CreateUser)
				r.Get("/users/{id}", adminHandler.UserDetails)
				r.Patch("/users/{id}", adminHandler.EditUser)
				r.Post("/users/{id}/block", adminHandler.Block)
				r.Post("/users/{id}/unblock", adminHandler.Unblock)
				r.Post("/users/{id}/ban", adminHandler.Ban)
				r.Post("/users/{id}/warn", adminHandler.Warn)
				r.Post("/users/{id}/make-admin", adminHandler.MakeAdmin)
				r.Delete("/users/{id}", adminHandler.DeleteUser)

				r.Get("/settings", adminHandler.Settings)
				r.Put("/settings", adminHandler.SaveSettings)
				r.Get("/export", adminHandler.Export)
				r.Get("/audit", adminHandler.AuditLog)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeRouteError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeRouteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
}
