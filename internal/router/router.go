package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"printer-fieldops/internal/auth"
	"printer-fieldops/internal/config"
	"printer-fieldops/internal/handler"
	"printer-fieldops/internal/metrics"
	"printer-fieldops/internal/middleware"
)

// HealthFunc reports whether the process can serve traffic.
type HealthFunc func(ctx context.Context) error

func New(
	cfg *config.Config,
	health HealthFunc,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	auditHandler *handler.AuditHandler,
	deviceHandler *handler.DeviceHandler,
	fieldHandler *handler.FieldHandler,
	credentialsHandler *handler.CredentialsHandler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.Server.RateLimitRPM, cfg.Server.AuthRateLimitRPM)

	r.Use(middleware.NewClientIPResolver(cfg.Server.TrustedProxyPrefixes()).Handler)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	session := authMiddleware.RequireSession
	device := authMiddleware.RequireDeviceSignature
	can := authMiddleware.Require

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		api.Route("/web/auth", func(web chi.Router) {
			web.Post("/bootstrap", authHandler.Bootstrap)
			web.Post("/login", authHandler.Login)

			web.Group(func(authed chi.Router) {
				authed.Use(session)

				authed.Post("/refresh", authHandler.Refresh)
				authed.With(can(auth.ActionProfileRead)).Get("/me", authHandler.Me)
				authed.With(can(auth.ActionUsersRead)).Get("/users", userHandler.List)
				authed.With(can(auth.ActionUsersCreate)).Post("/users", userHandler.Create)
				authed.With(can(auth.ActionUsersActivate)).Patch("/users/{id}", userHandler.Update)
				authed.With(can(auth.ActionUsersForcePassword)).Post("/users/{id}/force-password", userHandler.ForcePassword)
				authed.With(can(auth.ActionUsersImport)).Post("/import-users", userHandler.Import)
				authed.With(can(auth.ActionAuditRead)).Get("/audit", auditHandler.List)
				authed.With(can(auth.ActionCloudCredentialsRead)).Get("/cloud-credentials", credentialsHandler.Get)
			})
		})

		api.With(session, can(auth.ActionDevicesRegister)).Post("/devices", deviceHandler.Register)

		api.With(device, can(auth.ActionInstallationsRead)).Get("/installations", fieldHandler.ListInstallations)
		api.With(device, can(auth.ActionInstallationsWrite)).Post("/installations", fieldHandler.CreateInstallation)
		api.With(device, can(auth.ActionIncidentsWrite)).Post("/incidents", fieldHandler.ReportIncident)
		api.With(device, can(auth.ActionPhotosWrite)).Post("/photos/upload-url", fieldHandler.PhotoUploadURL)
	})

	return r
}
