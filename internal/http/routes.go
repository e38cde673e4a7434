package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/dropDatabas3/sysgate/internal/auth"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
	authctrl "github.com/dropDatabas3/sysgate/internal/http/controllers/auth"
	systemctrl "github.com/dropDatabas3/sysgate/internal/http/controllers/system"
	"github.com/dropDatabas3/sysgate/internal/rate"
)

// RouterDeps contiene todo lo que el router necesita ya armado.
type RouterDeps struct {
	System *systemctrl.Controller
	Auth   *authctrl.Controller

	AuthService *authsvc.Service
	AccessRepo  repository.AccessRepository

	LoginLimiter rate.Limiter
	Metrics      http.Handler

	GateReadTimeout    time.Duration
	CORSAllowedOrigins []string

	// Ready reporta si las dependencias (Postgres) responden.
	Ready func(ctx context.Context) error
}

// NewRouter arma el árbol de rutas completo.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	requireAuth := WithAuth(d.AuthService)
	requireAccess := WithAccessGuard(d.AccessRepo, d.GateReadTimeout)

	systemctrl.SetWatchHooks(systemctrl.WatchStreamHooks{
		Opened: WatchStreamOpened,
		Closed: WatchStreamClosed,
	})

	// ─── Operacional ───
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// ─── Público ───
	r.Get("/v1/system/access", d.System.PublicAccess)

	r.Group(func(r chi.Router) {
		if d.LoginLimiter != nil {
			r.Use(func(next http.Handler) http.Handler {
				return WithRateLimit(next, d.LoginLimiter)
			})
		}
		r.Post("/v1/auth/login", d.Auth.Login)
		r.Post("/v1/auth/register", d.Auth.Register)
	})

	// ─── Autenticado ───
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		// Logout y watch no pasan por el guard: un usuario bloqueado tiene
		// que poder cerrar sesión, y el watch reporta blocked como evento.
		r.Post("/v1/auth/logout", d.Auth.Logout)
		r.Get("/v1/system/access/watch", d.System.Watch)

		r.Group(func(r chi.Router) {
			r.Use(requireAccess)
			r.Get("/v1/me", d.Auth.Me)
		})

		// ─── Admin ───
		r.Group(func(r chi.Router) {
			r.Use(WithAdmin)
			r.Get("/v1/admin/system/maintenance", d.System.Maintenance)
			r.Post("/v1/admin/system/maintenance", d.System.Toggle)
		})
	})

	// Cadena exterior: request id → recover → CORS → métricas → logging.
	var h http.Handler = r
	h = WithLogging(h)
	h = WithMetrics(h)
	h = WithCORS(h, d.CORSAllowedOrigins)
	h = WithRecover(h)
	h = WithRequestID(h)
	return h
}
