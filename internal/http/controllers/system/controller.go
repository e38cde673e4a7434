// Package system expone los endpoints del estado de acceso: lectura pública,
// detalle y toggle administrativo, y el stream de watch.
package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/auth"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
	"github.com/dropDatabas3/sysgate/internal/email"
	"github.com/dropDatabas3/sysgate/internal/notify"
)

// Controller agrupa los handlers del subsistema de acceso.
type Controller struct {
	accessRepo repository.AccessRepository
	users      repository.UserRepository
	roles      repository.RoleRepository
	auth       *auth.Service
	notifier   notify.Notifier
	notices    *email.Notices

	readTimeout time.Duration
	log         *zap.Logger
}

type Deps struct {
	AccessRepo  repository.AccessRepository
	Users       repository.UserRepository
	Roles       repository.RoleRepository
	Auth        *auth.Service
	Notifier    notify.Notifier
	Notices     *email.Notices
	ReadTimeout time.Duration
}

func New(d Deps) *Controller {
	rt := d.ReadTimeout
	if rt <= 0 {
		rt = 3 * time.Second
	}
	return &Controller{
		accessRepo:  d.AccessRepo,
		users:       d.Users,
		roles:       d.Roles,
		auth:        d.Auth,
		notifier:    d.Notifier,
		notices:     d.Notices,
		readTimeout: rt,
		log:         zap.L().Named("system"),
	}
}
