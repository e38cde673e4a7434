// Package gate implementa la máquina de estados que reconcilia tres entradas
// independientes (eventos de autenticación, lecturas del Access State Store y
// pushes del Change Notifier) en un único veredicto consistente por sesión.
//
// Invariante duro: una identidad standard jamás queda en sesión utilizable
// mientras el mantenimiento está activo. Al transicionar Granted→Blocked el
// gate revoca la sesión subyacente antes de exponer Blocked.
package gate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/metrics"
	"github.com/dropDatabas3/sysgate/internal/notify"
)

// State es el estado visible del gate.
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateChecking        State = "checking"
	StateGranted         State = "granted"
	StateBlocked         State = "blocked"
	StateUnauthenticated State = "unauthenticated"
)

// Identity es lo que el gate conoce de la sesión autenticada.
type Identity struct {
	UserID    string
	TokenHash string
}

// AuthSession abstrae el subsistema de autenticación para una sesión.
type AuthSession interface {
	// CurrentIdentity retorna la identidad de la sesión, o nil si no hay
	// sesión válida almacenada.
	CurrentIdentity(ctx context.Context) (*Identity, error)

	// RevokeSession revoca la sesión local y remotamente.
	RevokeSession(ctx context.Context, id Identity, reason string) error
}

// StateReader es la cara de solo lectura del Access State Store.
type StateReader interface {
	Get(ctx context.Context) (access.State, error)
}

// PrivilegeLookup consulta el nivel de privilegio. Se re-consulta en cada fase
// Checking y en cada reconsideración Granted→Blocked: el privilegio puede
// cambiar entre chequeos y no debe confiarse en un valor más viejo que la
// última transición de autenticación.
type PrivilegeLookup interface {
	PrivilegeOf(ctx context.Context, userID string) (access.Privilege, error)
}

// Snapshot es el estado observable del gate en un instante.
type Snapshot struct {
	State   State          `json:"state"`
	Verdict access.Verdict `json:"verdict"`
	Version int64          `json:"version"`
}

// Config arma un Gate.
type Config struct {
	Reader      StateReader
	Roles       PrivilegeLookup
	Auth        AuthSession
	Notifier    notify.Notifier
	ReadTimeout time.Duration
	// OnChange se invoca en cada transición observable (puede ser nil).
	OnChange func(Snapshot)
	Logger   *zap.Logger
}

// Gate es la máquina de estados de una sesión conectada.
type Gate struct {
	cfg Config
	log *zap.Logger
	sub notify.Subscription

	mu      sync.Mutex
	state   State
	verdict access.Verdict
	// last es el AccessState más nuevo conocido; version su guardia monotónica.
	last    access.State
	version int64
	// seq invalida chequeos en vuelo cuando llega un evento de auth o sign-out.
	seq  uint64
	id   *Identity
	priv access.Privilege
}

const revokeReasonMaintenance = "maintenance_mode_enabled"

func New(cfg Config) *Gate {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.L().Named("gate")
	}
	return &Gate{cfg: cfg, log: log, state: StateUninitialized, priv: access.PrivilegeStandard}
}

// Snapshot retorna el estado observable actual.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{State: g.state, Verdict: g.verdict, Version: g.version}
}

// Start ejecuta la transición Uninitialized→Checking, se suscribe al notifier
// y resuelve el chequeo inicial. Bloquea hasta resolver; el estado Checking es
// observable vía OnChange mientras tanto.
func (g *Gate) Start(ctx context.Context) {
	if g.cfg.Notifier != nil {
		g.sub = g.cfg.Notifier.Subscribe(g.onPush)
	}
	g.check(ctx)
}

// Stop corta la suscripción al notifier. Idempotente.
func (g *Gate) Stop() {
	if g.sub != nil {
		g.sub.Unsubscribe()
	}
}

// OnAuthEvent reacciona a un sign-in o restauración de sesión: se re-lee el
// estado y se decide de nuevo antes de dejar la sesión en pie.
func (g *Gate) OnAuthEvent(ctx context.Context) {
	g.mu.Lock()
	g.seq++
	g.mu.Unlock()
	g.check(ctx)
}

// SignOut reacciona al sign-out explícito del usuario. Cualquier chequeo en
// vuelo queda invalidado: su resultado no debe resucitar un estado previo.
func (g *Gate) SignOut() {
	g.mu.Lock()
	g.seq++
	g.id = nil
	g.priv = access.PrivilegeStandard
	g.setStateLocked(StateUnauthenticated, access.Verdict{})
	g.mu.Unlock()
}

// check es la fase Checking: resuelve identidad, privilegio y estado, y aplica
// la decisión. El resultado se descarta si mientras tanto hubo un evento de
// auth/sign-out (seq) o si la lectura quedó detrás de un push (version).
func (g *Gate) check(ctx context.Context) {
	g.mu.Lock()
	seq := g.seq
	g.setStateLocked(StateChecking, access.Verdict{})
	g.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()

	id, err := g.cfg.Auth.CurrentIdentity(rctx)
	if err != nil || id == nil {
		if err != nil {
			g.log.Warn("identity resolution failed", zap.Error(err))
		}
		g.applyUnauthenticated(seq)
		return
	}

	// Privilegio primero: si la lectura del estado falla, un administrador ya
	// establecido en este mismo chequeo puede quedar Granted optimista.
	priv, privErr := g.cfg.Roles.PrivilegeOf(rctx, id.UserID)
	if privErr != nil {
		g.log.Warn("privilege lookup failed, failing safe", zap.Error(privErr))
		g.applyUnavailable(seq, id)
		return
	}

	st, readErr := g.cfg.Reader.Get(rctx)
	if readErr != nil {
		g.log.Warn("access state read failed", zap.Error(readErr))
		if priv == access.PrivilegeAdministrator {
			g.mu.Lock()
			ver := g.version
			g.mu.Unlock()
			g.applyDecision(ctx, seq, ver, id, priv, access.Verdict{Status: access.StatusGranted}, false)
			return
		}
		// Fail hacia Blocked: otorgar acceso ante una falla de lectura
		// anularía el propósito del gate. Sin revocación: la identidad
		// nunca fue confirmada Granted bajo mantenimiento.
		g.applyUnavailable(seq, id)
		return
	}

	g.mu.Lock()
	if st.Version >= g.version {
		g.last = st
		g.version = st.Version
	} else {
		// Un push más nuevo ganó mientras la lectura estaba en vuelo:
		// se decide con el estado pusheado, la lectura se descarta.
		metrics.StaleDiscards.Inc()
		st = g.last
	}
	ver := g.version
	g.mu.Unlock()

	v := access.Decide(st, priv)
	g.applyDecision(ctx, seq, ver, id, priv, v, true)
}

// onPush procesa una entrega del Change Notifier.
func (g *Gate) onPush(st access.State) {
	g.mu.Lock()
	if st.Version != 0 && st.Version <= g.version {
		// StaleDelivery: ya se aplicó un estado igual o más nuevo.
		metrics.StaleDiscards.Inc()
		g.mu.Unlock()
		return
	}
	g.last = st
	g.version = st.Version
	cur := g.state
	id := g.id
	lastPriv := g.priv
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.ReadTimeout)
	defer cancel()

	switch cur {
	case StateGranted:
		if !st.Enabled {
			return
		}
		// Re-consultar privilegio en el momento de la
		// reconsideración; pudo haber cambiado desde el último chequeo.
		priv := lastPriv
		if id != nil {
			if p, err := g.cfg.Roles.PrivilegeOf(ctx, id.UserID); err == nil {
				priv = p
			} else {
				g.log.Warn("privilege refetch failed, using last known", zap.Error(err))
			}
		}
		if priv == access.PrivilegeAdministrator {
			// Los administradores siguen Granted; solo se anota el privilegio.
			g.mu.Lock()
			g.priv = priv
			g.mu.Unlock()
			return
		}
		if id != nil {
			g.revoke(ctx, *id)
		}
		g.mu.Lock()
		g.id = nil
		g.priv = priv
		g.setStateLocked(StateBlocked, access.Decide(st, priv))
		g.mu.Unlock()

	case StateBlocked:
		if st.Enabled {
			// Si el bloqueo vino por unavailability la sesión sigue viva
			// (nunca se confirmó Granted bajo mantenimiento). Con un estado
			// confirmado ya no hay excusa: se re-consulta privilegio y una
			// identidad standard pierde la sesión acá mismo.
			if id != nil {
				priv := lastPriv
				if p, err := g.cfg.Roles.PrivilegeOf(ctx, id.UserID); err == nil {
					priv = p
				} else {
					g.log.Warn("privilege refetch failed, using last known", zap.Error(err))
				}
				if priv == access.PrivilegeAdministrator {
					g.mu.Lock()
					g.priv = priv
					g.setStateLocked(StateGranted, access.Verdict{Status: access.StatusGranted})
					g.mu.Unlock()
					return
				}
				g.revoke(ctx, *id)
				g.mu.Lock()
				g.id = nil
				g.priv = priv
				g.setStateLocked(StateBlocked, access.Decide(st, priv))
				g.mu.Unlock()
				return
			}
			// Sigue bloqueado; solo puede haber cambiado el mensaje.
			g.mu.Lock()
			g.setStateLocked(StateBlocked, access.Decide(st, access.PrivilegeStandard))
			g.mu.Unlock()
			return
		}
		// Mantenimiento apagado. Si la sesión sigue viva
		// (bloqueo por unavailability, nunca revocada) vuelve a Granted;
		// si fue revocada, hace falta un sign-in nuevo.
		g.mu.Lock()
		if g.id != nil {
			g.setStateLocked(StateGranted, access.Verdict{Status: access.StatusGranted})
		} else {
			g.setStateLocked(StateUnauthenticated, access.Verdict{})
		}
		g.mu.Unlock()

	default:
		// Uninitialized/Checking/Unauthenticated: el estado quedó registrado
		// en last/version; el chequeo en vuelo (si hay) decidirá con él.
	}
}

// applyDecision publica el resultado de un chequeo si sigue vigente.
// revocable indica que el veredicto proviene de un estado confirmado (lectura
// o push exitoso) y por lo tanto un Blocked standard debe revocar la sesión.
func (g *Gate) applyDecision(ctx context.Context, seq uint64, ver int64, id *Identity, priv access.Privilege, v access.Verdict, revocable bool) {
	g.mu.Lock()
	if seq != g.seq {
		metrics.StaleDiscards.Inc()
		g.mu.Unlock()
		return
	}
	// Un push pudo llegar entre el cómputo y el commit: el estado pusheado
	// es garantido más nuevo, se re-decide con él.
	if g.version != ver {
		metrics.StaleDiscards.Inc()
		v = access.Decide(g.last, priv)
		ver = g.version
		revocable = true
	}
	metrics.AccessChecks.WithLabelValues(string(v.Status)).Inc()

	if v.Status == access.StatusGranted {
		g.id = id
		g.priv = priv
		g.setStateLocked(StateGranted, v)
		g.mu.Unlock()
		return
	}

	// Blocked standard con estado confirmado → revocar antes
	// de exponer Blocked.
	needRevoke := revocable && priv == access.PrivilegeStandard && id != nil
	g.mu.Unlock()

	if needRevoke {
		g.revoke(ctx, *id)
	}

	g.mu.Lock()
	if seq != g.seq {
		metrics.StaleDiscards.Inc()
		g.mu.Unlock()
		return
	}
	if g.version != ver {
		// El estado volvió a cambiar durante la revocación. Si ahora otorga
		// acceso, la sesión ya revocada no puede resucitar: requiere sign-in.
		if nv := access.Decide(g.last, priv); nv.Status == access.StatusGranted {
			if needRevoke {
				g.id = nil
				g.priv = access.PrivilegeStandard
				g.setStateLocked(StateUnauthenticated, access.Verdict{})
			} else {
				g.id = id
				g.priv = priv
				g.setStateLocked(StateGranted, nv)
			}
			g.mu.Unlock()
			return
		}
		v = access.Decide(g.last, priv)
	}
	if needRevoke {
		g.id = nil
	} else {
		g.id = id
	}
	g.priv = priv
	g.setStateLocked(StateBlocked, v)
	g.mu.Unlock()
}

func (g *Gate) applyUnauthenticated(seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq {
		metrics.StaleDiscards.Inc()
		return
	}
	g.id = nil
	g.priv = access.PrivilegeStandard
	g.setStateLocked(StateUnauthenticated, access.Verdict{})
}

// applyUnavailable bloquea con mensaje genérico sin revocar: la identidad
// nunca fue confirmada bajo mantenimiento.
func (g *Gate) applyUnavailable(seq uint64, id *Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq {
		metrics.StaleDiscards.Inc()
		return
	}
	g.id = id
	metrics.AccessChecks.WithLabelValues(string(access.StatusBlocked)).Inc()
	g.setStateLocked(StateBlocked, access.Unavailable())
}

func (g *Gate) revoke(ctx context.Context, id Identity) {
	if err := g.cfg.Auth.RevokeSession(ctx, id, revokeReasonMaintenance); err != nil {
		// Aun si la revocación remota falla, el gate expone Blocked: la
		// sesión no vuelve a usarse desde este cliente.
		g.log.Error("session revocation failed", zap.Error(err), zap.String("user_id", id.UserID))
		return
	}
	metrics.SessionsRevoked.WithLabelValues(revokeReasonMaintenance).Inc()
	g.log.Info("session revoked by maintenance gate", zap.String("user_id", id.UserID))
}

// setStateLocked emite OnChange solo si algo observable cambió. Llamar con mu.
func (g *Gate) setStateLocked(s State, v access.Verdict) {
	if g.state == s && g.verdict == v {
		return
	}
	g.state = s
	g.verdict = v
	if g.cfg.OnChange != nil {
		g.cfg.OnChange(Snapshot{State: s, Verdict: v, Version: g.version})
	}
}
