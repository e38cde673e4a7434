package system

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/http/helpers"
)

type publicAccessResponse struct {
	Enabled bool   `json:"is_enabled"`
	Message string `json:"message,omitempty"`
	Version int64  `json:"version,omitempty"`
}

// PublicAccess es la lectura pública del estado: la pantalla de login la usa
// para mostrar el aviso de mantenimiento antes de autenticar. Ante una lectura
// fallida reporta mantenimiento con el mensaje genérico, nunca acceso abierto.
func (c *Controller) PublicAccess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.readTimeout)
	defer cancel()

	st, err := c.accessRepo.Get(ctx)
	if err != nil {
		c.log.Warn("public access read failed", zap.Error(err))
		helpers.WriteJSON(w, http.StatusOK, publicAccessResponse{
			Enabled: true,
			Message: access.UnavailableMessage,
		})
		return
	}

	resp := publicAccessResponse{Enabled: st.Enabled, Version: st.Version}
	if st.Enabled {
		resp.Message = st.MessageOrDefault()
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}
