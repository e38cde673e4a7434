package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/auth"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
	"github.com/dropDatabas3/sysgate/internal/http/helpers"
	"github.com/dropDatabas3/sysgate/internal/metrics"
)

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WithAuth valida el Bearer token y deja los claims en el contexto. Sin token
// o con sesión muerta responde 401.
func WithAuth(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sysgate"`)
				helpers.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := svc.Authenticate(r.Context(), raw)
			if err != nil {
				if errors.Is(err, repository.ErrSessionRevoked) {
					helpers.WriteError(w, http.StatusUnauthorized, "session_revoked", "la sesión fue revocada")
					return
				}
				helpers.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(helpers.WithClaims(r.Context(), claims)))
		})
	}
}

// WithAccessGuard corta las rutas protegidas según el estado de acceso: 503
// con el mensaje del operador para usuarios standard durante mantenimiento.
// Ante una lectura fallida falla hacia bloqueado, salvo para administradores
// según el claim role.
func WithAccessGuard(reader repository.AccessRepository, readTimeout time.Duration) func(http.Handler) http.Handler {
	log := zap.L().Named("guard")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := helpers.ClaimsFrom(r.Context())
			if !ok {
				helpers.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
				return
			}
			priv := claims.Privilege()

			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			st, err := reader.Get(ctx)
			cancel()
			if err != nil {
				if priv == access.PrivilegeAdministrator {
					metrics.AccessChecks.WithLabelValues("granted").Inc()
					next.ServeHTTP(w, r)
					return
				}
				log.Warn("access state unavailable, blocking", zap.Error(err))
				metrics.AccessChecks.WithLabelValues("blocked").Inc()
				helpers.WriteError(w, http.StatusServiceUnavailable, "maintenance", access.UnavailableMessage)
				return
			}

			v := access.Decide(st, priv)
			metrics.AccessChecks.WithLabelValues(string(v.Status)).Inc()
			if v.Status == access.StatusBlocked {
				helpers.WriteError(w, http.StatusServiceUnavailable, "maintenance", v.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithAdmin exige el claim role de administrador. La frontera del store vuelve
// a verificar contra user_roles en cada write; esto solo corta temprano.
func WithAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := helpers.ClaimsFrom(r.Context())
		if !ok || claims.Privilege() != access.PrivilegeAdministrator {
			helpers.WriteError(w, http.StatusForbidden, "forbidden", "se requiere privilegio de administrador")
			return
		}
		next.ServeHTTP(w, r)
	})
}
