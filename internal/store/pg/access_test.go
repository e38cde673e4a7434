package pg

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
)

// newTestStore levanta el pool contra STORAGE_DSN, migra y limpia el singleton
// para que las versiones arranquen deterministas.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("STORAGE_DSN")
	if dsn == "" {
		t.Skip("requires DB envs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, dsn, Tuning{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))

	_, err = s.pool.Exec(ctx, `DELETE FROM system_maintenance`)
	require.NoError(t, err)
	return s
}

// newTestUser crea un usuario con email único; grant opcional de rol admin.
func newTestUser(t *testing.T, s *Store, admin bool) string {
	t.Helper()
	ctx := context.Background()

	u, err := NewUserRepo(s.pool).Create(ctx, fmt.Sprintf("%s@test.local", uuid.NewString()), "x", "Test User")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), `DELETE FROM app_user WHERE id = $1`, u.ID)
	})
	if admin {
		require.NoError(t, NewRoleRepo(s.pool).Grant(ctx, u.ID, "admin"))
	}
	return u.ID
}

// Un actor sin rol admin recibe ErrForbidden y el singleton queda intacto.
func TestAccessRepo_Toggle_ForbiddenLeavesStateUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := NewAccessRepo(s.pool)

	adminID := newTestUser(t, s, true)
	standardID := newTestUser(t, s, false)

	msg := "Upgrading"
	before, err := repo.Toggle(ctx, repository.ToggleInput{Enabled: true, Message: &msg, ActorID: adminID})
	require.NoError(t, err)

	_, err = repo.Toggle(ctx, repository.ToggleInput{Enabled: false, ActorID: standardID})
	require.ErrorIs(t, err, repository.ErrForbidden)

	after, err := repo.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, before.Version, after.Version, "forbidden toggle must not bump version")
	require.True(t, after.Enabled)
	require.NotNil(t, after.Message)
	require.Equal(t, "Upgrading", *after.Message)
}

// N toggles seguidos dejan exactamente una fila, con el id fijo y la versión
// subiendo de a uno por write.
func TestAccessRepo_Toggle_SingletonAcrossWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := NewAccessRepo(s.pool)

	adminID := newTestUser(t, s, true)

	var last int64
	for i := 0; i < 5; i++ {
		st, err := repo.Toggle(ctx, repository.ToggleInput{Enabled: i%2 == 0, ActorID: adminID})
		require.NoError(t, err)
		require.Equal(t, access.SingletonID, st.ID)
		require.Greater(t, st.Version, last)
		last = st.Version
	}

	var rows int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM system_maintenance`).Scan(&rows))
	require.Equal(t, 1, rows)

	st, err := repo.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, access.SingletonID, st.ID)
	require.Equal(t, last, st.Version)
}
