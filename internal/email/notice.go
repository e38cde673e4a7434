package email

import (
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/access"
)

// Notices arma y despacha los avisos operativos de cambio de estado del
// sistema. El envío es best-effort: un fallo de SMTP nunca debe frenar un
// toggle de mantenimiento.
type Notices struct {
	sender Sender
	to     []string
	log    *zap.Logger
}

func NewNotices(sender Sender, to []string) *Notices {
	return &Notices{sender: sender, to: to, log: zap.L().Named("email")}
}

// MaintenanceToggled avisa al equipo de operaciones que el modo mantenimiento
// cambió. Se llama en una goroutine aparte del handler del toggle.
func (n *Notices) MaintenanceToggled(st access.State, actorEmail string) {
	if n == nil || n.sender == nil || len(n.to) == 0 {
		return
	}

	action := "disabled"
	if st.Enabled {
		action = "enabled"
	}
	subject := fmt.Sprintf("[sysgate] Maintenance mode %s", action)

	msg := st.MessageOrDefault()
	text := fmt.Sprintf(
		"Maintenance mode was %s by %s at %s.\n\nMessage shown to users:\n%s\n\nState version: %d\n",
		action, actorEmail, st.UpdatedAt.Format(time.RFC3339), msg, st.Version,
	)
	htmlBody := fmt.Sprintf(
		"<p>Maintenance mode was <strong>%s</strong> by %s at %s.</p><p>Message shown to users:</p><blockquote>%s</blockquote><p>State version: %d</p>",
		action, html.EscapeString(actorEmail), st.UpdatedAt.Format(time.RFC3339),
		html.EscapeString(msg), st.Version,
	)

	for _, to := range n.to {
		if err := n.sender.Send(to, subject, htmlBody, text); err != nil {
			n.log.Warn("maintenance notice failed", zap.String("to", to), zap.Error(err))
		}
	}
}
