package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del gate de acceso. Viven en un paquete propio para evitar ciclos
// de import entre gate y los paquetes HTTP.

var (
	MaintenanceEnabled = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sysgate_maintenance_enabled",
		Help: "1 si el modo mantenimiento está activo",
	})

	MaintenanceToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sysgate_maintenance_toggles_total",
		Help: "Toggles de mantenimiento por estado resultante",
	}, []string{"enabled"})

	SessionsRevoked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sysgate_sessions_revoked_total",
		Help: "Sesiones revocadas por el gate, por motivo",
	}, []string{"reason"})

	AccessChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sysgate_access_checks_total",
		Help: "Evaluaciones de acceso por veredicto",
	}, []string{"verdict"})

	StaleDiscards = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sysgate_stale_discards_total",
		Help: "Entregas o lecturas descartadas por llegar desactualizadas",
	})
)

// RegisterGate registra las métricas del gate en el registry dado (o default).
func RegisterGate(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		MaintenanceEnabled, MaintenanceToggles, SessionsRevoked, AccessChecks, StaleDiscards,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
