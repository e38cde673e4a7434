package system

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/gate"
	"github.com/dropDatabas3/sysgate/internal/http/helpers"
)

// WatchStreamHooks permite al router contar streams activos sin acoplar este
// paquete a las métricas HTTP.
type WatchStreamHooks struct {
	Opened func()
	Closed func()
}

var watchHooks WatchStreamHooks

// SetWatchHooks instala los hooks de apertura/cierre de streams. Se llama una
// vez durante el wiring.
func SetWatchHooks(h WatchStreamHooks) { watchHooks = h }

// Watch es el stream SSE del estado del gate para la sesión autenticada.
// Cada conexión arma su propio Gate: se suscribe al Change Notifier, resuelve
// el chequeo inicial y empuja cada transición observable como un evento.
//
// Eventos:
//
//	event: access
//	data: {"state":"granted","verdict":{"status":"granted"},"version":7}
//
// El cliente reacciona a blocked cerrando su UI; la sesión standard ya fue
// revocada server-side cuando el evento llega.
func (c *Controller) Watch(w http.ResponseWriter, r *http.Request) {
	claims, ok := helpers.ClaimsFrom(r.Context())
	if !ok {
		helpers.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		helpers.WriteError(w, http.StatusInternalServerError, "internal_error", "streaming no soportado")
		return
	}

	connID := uuid.NewString()
	log := c.log.With(zap.String("conn_id", connID), zap.String("user_id", claims.Subject))

	// Buffer generoso: las transiciones del gate son poco frecuentes y un
	// cliente lento no debe bloquear al notifier.
	events := make(chan gate.Snapshot, 16)

	g := gate.New(gate.Config{
		Reader:      c.accessRepo,
		Roles:       c.roles,
		Auth:        c.auth.NewGateSession(claims),
		Notifier:    c.notifier,
		ReadTimeout: c.readTimeout,
		OnChange: func(s gate.Snapshot) {
			select {
			case events <- s:
			default:
				log.Warn("watch event dropped, slow consumer")
			}
		},
		Logger: log.Named("gate"),
	})
	defer g.Stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if watchHooks.Opened != nil {
		watchHooks.Opened()
	}
	defer func() {
		if watchHooks.Closed != nil {
			watchHooks.Closed()
		}
	}()
	log.Info("watch stream opened")
	defer log.Info("watch stream closed")

	// El chequeo inicial corre acá; sus transiciones (Checking incluida) ya
	// entran por el canal de eventos.
	g.Start(r.Context())

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case snap := <-events:
			data, err := json.Marshal(snap)
			if err != nil {
				log.Error("snapshot marshal failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: access\ndata: %s\n\n", data)
			flusher.Flush()

			// Una sesión que dejó de existir no tiene nada más que observar.
			if snap.State == gate.StateUnauthenticated {
				return
			}

		case <-heartbeat.C:
			// Comentario SSE: mantiene vivos proxies y balanceadores.
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
