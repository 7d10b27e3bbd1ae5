package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-pregnancy-family/internal/config"
	"github.com/go-pregnancy-family/internal/transport/http/handler"
	appmiddleware "github.com/go-pregnancy-family/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// PublicPaths are served without a bearer token.
var PublicPaths = []string{
	"/health",
	"/auth/send-code",
	"/auth/register",
	"/auth/login",
}

// NewRouter builds the application router. The returned stop func ends the rate
// limiter's background sweep and must be called once the router is retired.
func NewRouter(cfg *config.Config, svc *Services) (http.Handler, func()) {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		// Rewrites RemoteAddr from the proxy headers; never enabled for direct exposure.
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(appmiddleware.Auth(svc.Sessions, PublicPaths...))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	// Applied to the public endpoints that send SMS or mint sessions.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	authH := handler.NewAuthHandler(svc.Auth)
	userH := handler.NewUserHandler(svc.Users, cfg.AvatarMaxBytes)
	familyH := handler.NewFamilyHandler(svc.Families)
	notifH := handler.NewNotificationHandler(svc.Notifications)

	r.Get("/health", handler.Health)

	r.Route("/auth", func(r chi.Router) {
		r.With(sensitiveRL.Limit).Post("/send-code", authH.SendCode)
		r.With(sensitiveRL.Limit).Post("/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/login", authH.Login)
		r.Post("/logout", authH.Logout)
		r.Get("/info", authH.Info)
		r.Post("/refresh", authH.Refresh)
	})

	r.Put("/users/me", userH.UpdateMe)
	r.Post("/users/me/avatar", userH.UploadAvatar)

	r.Route("/families", func(r chi.Router) {
		r.Post("/", familyH.Create)
		r.Get("/me", familyH.Mine)
		r.Post("/join", familyH.Join)
		r.Get("/{id}/members", familyH.Members)
		r.Post("/{id}/leave", familyH.Leave)
		r.Post("/{id}/invite-code", familyH.RegenerateInviteCode)
		r.Put("/{id}/pregnancy", familyH.UpdatePregnancy)
	})

	r.Get("/notifications", notifH.ListUnread)
	r.Put("/notifications/{id}", notifH.MarkRead)

	return r, sensitiveRL.Stop
}
