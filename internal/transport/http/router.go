package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lab-access-api/internal/application/apptoken"
	"github.com/lab-access-api/internal/application/desktoptoken"
	"github.com/lab-access-api/internal/application/reservation"
	"github.com/lab-access-api/internal/application/session"
	"github.com/lab-access-api/internal/application/verification"
	"github.com/lab-access-api/internal/config"
	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/pkg/ratelimit"
	"github.com/lab-access-api/internal/transport/http/handler"
	appmiddleware "github.com/lab-access-api/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requestCodeRL := ratelimit.New(cfg.RequestCodePerHour, time.Hour)
	desktopValidateRL := ratelimit.New(cfg.DesktopValidatePerHour, time.Hour)
	// The staff-login budget lives inside the session service rather than in
	// middleware: a successful login must reset the client's counter.
	staffLoginRL := ratelimit.New(cfg.StaffLoginPerHour, time.Hour)

	sessionSvc := session.NewService(session.ServiceDeps{
		Sessions:   deps.Sessions,
		Users:      deps.Users,
		Limiter:    staffLoginRL,
		SessionTTL: cfg.SessionTTL,
	})
	verificationSvc := verification.NewService(verification.ServiceDeps{
		Codes:        deps.Codes,
		Activities:   deps.Activities,
		Notifier:     deps.Mailer,
		Tokens:       deps.Tokens,
		CodeTTL:      cfg.CodeTTL,
		ResendWindow: cfg.CodeResendWindow,
		MaxAttempts:  cfg.CodeMaxAttempts,
	})
	reservationSvc := reservation.NewService(reservation.ServiceDeps{
		Reservations: deps.Reservations,
		Sink:         deps.Sink,
		TTL:          cfg.ReservationTTL,
	})
	appTokenSvc := apptoken.NewService(apptoken.ServiceDeps{
		Tokens:     deps.AppTokens,
		Sessions:   sessionSvc,
		Activities: deps.Activities,
		TokenTTL:   cfg.AppTokenTTL,
	})
	desktopTokenSvc := desktoptoken.NewService(desktoptoken.ServiceDeps{
		Tokens:   deps.DesktopTokens,
		Index:    deps.DesktopIndex,
		Sessions: sessionSvc,
		TokenTTL: cfg.DesktopTokenTTL,
	})

	healthH := handler.NewHealthHandler()
	accessH := handler.NewAccessHandler(verificationSvc, sessionSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	appTokenH := handler.NewAppTokenHandler(appTokenSvc)
	desktopTokenH := handler.NewDesktopTokenHandler(desktopTokenSvc)
	reservationH := handler.NewReservationHandler(reservationSvc)
	uploadH := handler.NewUploadHandler(reservationSvc)

	sessionMw := appmiddleware.Session(sessionSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no session) ───────────────────────────────────────
		r.Get("/health-check", healthH.Ping)

		r.With(appmiddleware.RateLimit(requestCodeRL, "request-code")).
			Post("/access/request-code", accessH.RequestCode)
		r.Post("/access/verify-code", accessH.VerifyCode)

		r.Post("/sessions/login", sessionH.Login)

		// The lab application holds a session id, not the browser cookie, so
		// token issuance takes the id in the body.
		r.Post("/app-token/issue", appTokenH.Issue)
		r.Post("/app-token/validate", appTokenH.Validate)

		r.With(appmiddleware.RateLimit(desktopValidateRL, "desktop-validate")).
			Post("/desktop-token/validate", desktopTokenH.Validate)

		// Redeeming a reservation needs only the unguessable upload id.
		r.Post("/uploads/{uploadID}", uploadH.Submit)

		// ── Session-bound routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(sessionMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)
			r.Post("/desktop-token/issue", desktopTokenH.Issue)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleProfessor, domain.RoleAdmin))

				r.Post("/reservations", reservationH.Create)
			})
		})
	})

	return r
}
