package system

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
	"github.com/dropDatabas3/sysgate/internal/http/helpers"
	"github.com/dropDatabas3/sysgate/internal/metrics"
)

// Maintenance devuelve el registro completo de mantenimiento (solo admin):
// incluye enabled_by, timestamps y version.
func (c *Controller) Maintenance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.readTimeout)
	defer cancel()

	st, err := c.accessRepo.Get(ctx)
	if err != nil {
		c.log.Error("maintenance read failed", zap.Error(err))
		helpers.WriteError(w, http.StatusServiceUnavailable, "unavailable", "no se pudo leer el estado")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, st)
}

type toggleRequest struct {
	Enabled bool    `json:"enabled"`
	Message *string `json:"message,omitempty"`
}

// Toggle activa o desactiva el modo mantenimiento. La frontera del store
// verifica el privilegio del actor contra user_roles dentro de la misma
// transacción del write; el middleware de admin solo corta temprano.
func (c *Controller) Toggle(w http.ResponseWriter, r *http.Request) {
	claims, ok := helpers.ClaimsFrom(r.Context())
	if !ok {
		helpers.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	var req toggleRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Message != nil {
		m := strings.TrimSpace(*req.Message)
		if m == "" {
			req.Message = nil
		} else {
			req.Message = &m
		}
	}

	st, err := c.accessRepo.Toggle(r.Context(), repository.ToggleInput{
		Enabled: req.Enabled,
		Message: req.Message,
		ActorID: claims.Subject,
	})
	if err != nil {
		if repository.IsForbidden(err) {
			helpers.WriteError(w, http.StatusForbidden, "forbidden", "solo un administrador puede cambiar el modo mantenimiento")
			return
		}
		c.log.Error("maintenance toggle failed", zap.Error(err))
		helpers.WriteError(w, http.StatusInternalServerError, "internal_error", "no se pudo aplicar el cambio")
		return
	}

	metrics.MaintenanceToggles.WithLabelValues(boolLabel(st.Enabled)).Inc()
	if st.Enabled {
		metrics.MaintenanceEnabled.Set(1)
	} else {
		metrics.MaintenanceEnabled.Set(0)
	}

	if c.notifier != nil {
		if err := c.notifier.Publish(r.Context(), st); err != nil {
			// At-least-once: el fallo de publish no revierte el write. Los
			// gates convergen por resync o en su próximo chequeo.
			c.log.Warn("state publish failed", zap.Error(err))
		}
	}

	c.log.Info("maintenance toggled",
		zap.Bool("enabled", st.Enabled),
		zap.String("actor", claims.Subject),
		zap.Int64("version", st.Version),
	)

	// Aviso a operaciones fuera del camino del request.
	go c.notifyOps(st, claims.Subject)

	helpers.WriteJSON(w, http.StatusOK, st)
}

func (c *Controller) notifyOps(st access.State, actorID string) {
	if c.notices == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()

	actorEmail := actorID
	if c.users != nil {
		if u, err := c.users.GetByID(ctx, actorID); err == nil {
			actorEmail = u.Email
		}
	}
	c.notices.MaintenanceToggled(st, actorEmail)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
