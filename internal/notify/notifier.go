// Package notify implementa el Change Notifier: fan-out best-effort,
// at-least-once, del estado de acceso completo a todos los suscriptores.
//
// La entrega NO garantiza exactly-once ni orden frente a writes concurrentes:
// dos toggles rápidos pueden colapsarse en una sola entrega con el último
// estado. Eso es aceptable porque AccessState es un singleton last-write-wins,
// no un event log; los consumidores descartan entregas viejas por Version.
package notify

import (
	"context"

	"github.com/dropDatabas3/sysgate/internal/access"
)

// Handler recibe el estado nuevo completo en cada cambio (no un diff).
type Handler func(access.State)

// Subscription es el handle de una suscripción activa.
type Subscription interface {
	// Unsubscribe detiene la entrega. Idempotente; debe llamarse al
	// desmontar el componente para no invocar callbacks sobre estado muerto.
	Unsubscribe()
}

// Notifier publica cambios de AccessState y los entrega a suscriptores locales.
type Notifier interface {
	// Subscribe registra un handler. Se permiten múltiples suscriptores por
	// proceso (varias conexiones / tabs del mismo cliente).
	Subscribe(h Handler) Subscription

	// Publish emite el estado nuevo a todos los suscriptores.
	// Un Publish que no llega a todos es una falla parcial tolerada: los
	// gates re-leen el store en cada reconexión y evento de autenticación.
	Publish(ctx context.Context, s access.State) error

	// Close libera el transporte subyacente.
	Close() error
}
