package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/notify"
)

// ─── fakes ───

type fakeReader struct {
	mu    sync.Mutex
	state access.State
	err   error
	// gate bloquea la lectura hasta que se cierre, si no es nil
	block chan struct{}
}

func (f *fakeReader) Get(ctx context.Context) (access.State, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return access.State{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return access.State{}, f.err
	}
	return f.state, nil
}

func (f *fakeReader) set(s access.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

type fakeRoles struct {
	mu   sync.Mutex
	priv map[string]access.Privilege
	err  error
}

func (f *fakeRoles) PrivilegeOf(_ context.Context, userID string) (access.Privilege, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return access.PrivilegeStandard, f.err
	}
	if p, ok := f.priv[userID]; ok {
		return p, nil
	}
	return access.PrivilegeStandard, nil
}

type fakeAuth struct {
	mu      sync.Mutex
	ident   *Identity
	revoked []string // token hashes revocados
}

func (f *fakeAuth) CurrentIdentity(context.Context) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ident == nil {
		return nil, nil
	}
	for _, h := range f.revoked {
		if h == f.ident.TokenHash {
			return nil, nil
		}
	}
	cp := *f.ident
	return &cp, nil
}

func (f *fakeAuth) RevokeSession(_ context.Context, id Identity, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id.TokenHash)
	return nil
}

func (f *fakeAuth) revokedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.revoked)
}

type env struct {
	reader   *fakeReader
	roles    *fakeRoles
	auth     *fakeAuth
	notifier *notify.Memory
	gate     *Gate
}

func newEnv(t *testing.T, ident *Identity, priv access.Privilege, st access.State) *env {
	t.Helper()
	e := &env{
		reader:   &fakeReader{state: st},
		roles:    &fakeRoles{priv: map[string]access.Privilege{}},
		auth:     &fakeAuth{ident: ident},
		notifier: notify.NewMemory(),
	}
	if ident != nil {
		e.roles.priv[ident.UserID] = priv
	}
	e.gate = New(Config{
		Reader:      e.reader,
		Roles:       e.roles,
		Auth:        e.auth,
		Notifier:    e.notifier,
		ReadTimeout: time.Second,
	})
	t.Cleanup(e.gate.Stop)
	return e
}

// push publica por el notifier y además actualiza el reader, como haría el
// toggle real (write al store + publish).
func (e *env) push(ctx context.Context, st access.State) {
	e.reader.set(st)
	_ = e.notifier.Publish(ctx, st)
}

func enabled(version int64, msg string) access.State {
	s := access.State{ID: access.SingletonID, Enabled: true, Version: version}
	if msg != "" {
		s.Message = &msg
	}
	return s
}

func disabled(version int64) access.State {
	return access.State{ID: access.SingletonID, Enabled: false, Version: version}
}

// ─── tests ───

func TestGate_NoStoredSession(t *testing.T) {
	e := newEnv(t, nil, access.PrivilegeStandard, disabled(1))
	e.gate.Start(context.Background())

	require.Equal(t, StateUnauthenticated, e.gate.Snapshot().State)
}

func TestGate_StandardGrantedWhenMaintenanceOff(t *testing.T) {
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(1))
	e.gate.Start(context.Background())

	snap := e.gate.Snapshot()
	require.Equal(t, StateGranted, snap.State)
	require.Equal(t, access.StatusGranted, snap.Verdict.Status)
	require.Zero(t, e.auth.revokedCount())
}

// Sesión restaurada con mantenimiento ya activo → revocación
// antes de exponer Blocked.
func TestGate_StandardBlockedOnRestore_RevokesSession(t *testing.T) {
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, enabled(2, "Upgrading"))
	e.gate.Start(context.Background())

	snap := e.gate.Snapshot()
	require.Equal(t, StateBlocked, snap.State)
	require.Equal(t, "Upgrading", snap.Verdict.Message)
	require.Equal(t, 1, e.auth.revokedCount(), "blocked standard session must be revoked")
}

// Toggle con sesión standard viva: Blocked y revocación dentro del mismo
// ciclo de notificación.
func TestGate_MaintenanceOn_RevokesStandardSession(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(1))
	e.gate.Start(ctx)
	require.Equal(t, StateGranted, e.gate.Snapshot().State)

	e.push(ctx, enabled(2, "Upgrading"))

	snap := e.gate.Snapshot()
	require.Equal(t, StateBlocked, snap.State)
	require.Equal(t, "Upgrading", snap.Verdict.Message)
	require.Equal(t, 1, e.auth.revokedCount())
}

// Los administradores quedan Granted ante el mismo push, sin acción.
func TestGate_MaintenanceOn_AdministratorBypasses(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "admin1", TokenHash: "ha"}
	e := newEnv(t, id, access.PrivilegeAdministrator, disabled(1))
	e.gate.Start(ctx)

	e.push(ctx, enabled(2, "Upgrading"))

	require.Equal(t, StateGranted, e.gate.Snapshot().State)
	require.Zero(t, e.auth.revokedCount())
}

// Dos gates de la misma identidad reaccionan independientemente;
// ninguno queda Granted.
func TestGate_TwoTabsBothBlock(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1", TokenHash: "h1"}

	reader := &fakeReader{state: disabled(1)}
	roles := &fakeRoles{priv: map[string]access.Privilege{"u1": access.PrivilegeStandard}}
	auth := &fakeAuth{ident: id}
	n := notify.NewMemory()

	mk := func() *Gate {
		g := New(Config{Reader: reader, Roles: roles, Auth: auth, Notifier: n, ReadTimeout: time.Second})
		g.Start(ctx)
		t.Cleanup(g.Stop)
		return g
	}
	tab1, tab2 := mk(), mk()
	require.Equal(t, StateGranted, tab1.Snapshot().State)
	require.Equal(t, StateGranted, tab2.Snapshot().State)

	reader.set(enabled(2, ""))
	_ = n.Publish(ctx, enabled(2, ""))

	require.Equal(t, StateBlocked, tab1.Snapshot().State)
	require.Equal(t, StateBlocked, tab2.Snapshot().State)
	// Ambas tabs revocan por su cuenta; la revocación es idempotente.
	require.GreaterOrEqual(t, auth.revokedCount(), 1)
}

// Mantenimiento apagado tras una revocación → hace falta un
// sign-in nuevo, no se resucita la sesión.
func TestGate_MaintenanceOff_AfterRevocation_RequiresSignIn(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(1))
	e.gate.Start(ctx)

	e.push(ctx, enabled(2, ""))
	require.Equal(t, StateBlocked, e.gate.Snapshot().State)

	e.push(ctx, disabled(3))
	require.Equal(t, StateUnauthenticated, e.gate.Snapshot().State)
}

// Los administradores que pasaron el mantenimiento en Granted ven limpiarse
// el estado sin transición alguna.
func TestGate_MaintenanceOff_AdminStaysGranted(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "admin1", TokenHash: "ha"}
	e := newEnv(t, id, access.PrivilegeAdministrator, disabled(1))
	e.gate.Start(ctx)

	e.push(ctx, enabled(2, ""))
	e.push(ctx, disabled(3))

	require.Equal(t, StateGranted, e.gate.Snapshot().State)
	require.Zero(t, e.auth.revokedCount())
}

// Lectura fallida durante Checking para un standard: Blocked con
// mensaje genérico, sin intento de revocación.
func TestGate_ReadFailure_FailsTowardBlocked(t *testing.T) {
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(1))
	e.reader.err = errors.New("store unreachable")
	e.gate.Start(context.Background())

	snap := e.gate.Snapshot()
	require.Equal(t, StateBlocked, snap.State)
	require.Equal(t, access.UnavailableMessage, snap.Verdict.Message)
	require.Zero(t, e.auth.revokedCount(), "no revocation for an identity never confirmed granted")
}

// Un administrador con privilegio ya establecido en el mismo chequeo queda
// Granted optimista ante la falla de lectura.
func TestGate_ReadFailure_AdminOptimisticGrant(t *testing.T) {
	id := &Identity{UserID: "admin1", TokenHash: "ha"}
	e := newEnv(t, id, access.PrivilegeAdministrator, disabled(1))
	e.reader.err = errors.New("store unreachable")
	e.gate.Start(context.Background())

	require.Equal(t, StateGranted, e.gate.Snapshot().State)
}

// Bloqueado por unavailability y después llega un push confirmado con
// mantenimiento activo: la sesión standard retenida se revoca recién ahí.
func TestGate_UnavailableThenMaintenancePush_RevokesStandardSession(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(1))
	e.reader.err = errors.New("store unreachable")
	e.gate.Start(ctx)

	snap := e.gate.Snapshot()
	require.Equal(t, StateBlocked, snap.State)
	require.Equal(t, access.UnavailableMessage, snap.Verdict.Message)
	require.Zero(t, e.auth.revokedCount())

	// El store se recupera y confirma mantenimiento activo.
	e.reader.mu.Lock()
	e.reader.err = nil
	e.reader.mu.Unlock()
	e.push(ctx, enabled(2, "Upgrading"))

	snap = e.gate.Snapshot()
	require.Equal(t, StateBlocked, snap.State)
	require.Equal(t, "Upgrading", snap.Verdict.Message)
	require.Equal(t, 1, e.auth.revokedCount(), "confirmed maintenance must revoke the retained session")
}

// El mismo push confirmado sobre un administrador retenido por unavailability
// lo saca del Blocked genérico hacia Granted, sin revocación.
func TestGate_UnavailableThenMaintenancePush_AdminRecoversGranted(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "admin1", TokenHash: "ha"}
	e := newEnv(t, id, access.PrivilegeAdministrator, disabled(1))
	e.roles.err = errors.New("roles unreachable")
	e.gate.Start(ctx)
	require.Equal(t, StateBlocked, e.gate.Snapshot().State)

	e.roles.mu.Lock()
	e.roles.err = nil
	e.roles.mu.Unlock()
	e.push(ctx, enabled(2, ""))

	require.Equal(t, StateGranted, e.gate.Snapshot().State)
	require.Zero(t, e.auth.revokedCount())
}

// Falla del lookup de privilegio → fail-safe hacia Blocked, sin revocación.
func TestGate_PrivilegeLookupFailure_FailsTowardBlocked(t *testing.T) {
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(1))
	e.roles.err = errors.New("roles unreachable")
	e.gate.Start(context.Background())

	snap := e.gate.Snapshot()
	require.Equal(t, StateBlocked, snap.State)
	require.Zero(t, e.auth.revokedCount())
}

// Una lectura iniciada antes de un push y resuelta después debe perder:
// el estado final es el del push, no el de la lectura vieja.
func TestGate_StaleReadDiscarded(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(1))
	e.gate.Start(ctx)
	require.Equal(t, StateGranted, e.gate.Snapshot().State)

	// Se retiene la próxima lectura en vuelo.
	block := make(chan struct{})
	e.reader.mu.Lock()
	e.reader.block = block
	e.reader.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.gate.OnAuthEvent(ctx)
		close(done)
	}()

	// Espera a que el chequeo esté en vuelo y entrega el push más nuevo.
	require.Eventually(t, func() bool {
		return e.gate.Snapshot().State == StateChecking
	}, time.Second, time.Millisecond)
	_ = e.notifier.Publish(ctx, enabled(2, "Upgrading"))

	// La lectura retenida resuelve ahora con el estado viejo (version 1).
	close(block)
	<-done

	snap := e.gate.Snapshot()
	require.Equal(t, StateBlocked, snap.State, "pushed state must win over stale read")
	require.Equal(t, "Upgrading", snap.Verdict.Message)
	require.Equal(t, 1, e.auth.revokedCount())
}

// Cancelación: un sign-out con chequeo en vuelo descarta el resultado; no se
// resucita un estado previo.
func TestGate_SignOutDiscardsInFlightCheck(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(1))
	e.gate.Start(ctx)

	block := make(chan struct{})
	e.reader.mu.Lock()
	e.reader.block = block
	e.reader.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.gate.OnAuthEvent(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return e.gate.Snapshot().State == StateChecking
	}, time.Second, time.Millisecond)

	e.gate.SignOut()
	close(block)
	<-done

	require.Equal(t, StateUnauthenticated, e.gate.Snapshot().State)
}

// Entregas con versión repetida o menor se descartan en silencio.
func TestGate_StaleDeliveryIgnored(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeStandard, disabled(5))
	e.gate.Start(ctx)
	require.Equal(t, StateGranted, e.gate.Snapshot().State)

	// Push con versión vieja: no debe bloquear.
	_ = e.notifier.Publish(ctx, enabled(4, ""))
	require.Equal(t, StateGranted, e.gate.Snapshot().State)
	require.Zero(t, e.auth.revokedCount())
}

// El privilegio se re-consulta en la reconsideración Granted→Blocked: un rol
// admin revocado a mitad de sesión pierde el bypass.
func TestGate_PrivilegeRefetchedOnPush(t *testing.T) {
	ctx := context.Background()
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	e := newEnv(t, id, access.PrivilegeAdministrator, disabled(1))
	e.gate.Start(ctx)
	require.Equal(t, StateGranted, e.gate.Snapshot().State)

	// Se le quita el rol admin antes del toggle.
	e.roles.mu.Lock()
	e.roles.priv["u1"] = access.PrivilegeStandard
	e.roles.mu.Unlock()

	e.push(ctx, enabled(2, ""))

	require.Equal(t, StateBlocked, e.gate.Snapshot().State)
	require.Equal(t, 1, e.auth.revokedCount())
}

// OnChange emite cada transición observable, incluyendo Checking.
func TestGate_OnChangeSequence(t *testing.T) {
	id := &Identity{UserID: "u1", TokenHash: "h1"}
	var mu sync.Mutex
	var states []State

	reader := &fakeReader{state: disabled(1)}
	roles := &fakeRoles{priv: map[string]access.Privilege{"u1": access.PrivilegeStandard}}
	auth := &fakeAuth{ident: id}
	n := notify.NewMemory()
	g := New(Config{
		Reader: reader, Roles: roles, Auth: auth, Notifier: n,
		ReadTimeout: time.Second,
		OnChange: func(s Snapshot) {
			mu.Lock()
			states = append(states, s.State)
			mu.Unlock()
		},
	})
	t.Cleanup(g.Stop)
	g.Start(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []State{StateChecking, StateGranted}, states)
}
