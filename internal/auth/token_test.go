package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/sysgate/internal/access"
)

func TestTokenIssuer_Roundtrip(t *testing.T) {
	iss := NewTokenIssuer("test-secret", "sysgate", time.Minute)

	raw, err := iss.Issue("user-1", "hash-abc", access.PrivilegeAdministrator)
	require.NoError(t, err)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "hash-abc", claims.SessionHash)
	require.Equal(t, access.PrivilegeAdministrator, claims.Privilege())
}

func TestTokenIssuer_RoleClaimMapping(t *testing.T) {
	iss := NewTokenIssuer("test-secret", "sysgate", time.Minute)

	raw, err := iss.Issue("user-2", "hash-def", access.PrivilegeStandard)
	require.NoError(t, err)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, access.PrivilegeStandard, claims.Privilege())

	// Un role desconocido degrada a standard, nunca a administrador.
	claims.Role = "whatever"
	require.Equal(t, access.PrivilegeStandard, claims.Privilege())
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	iss := NewTokenIssuer("secret-a", "sysgate", time.Minute)
	other := NewTokenIssuer("secret-b", "sysgate", time.Minute)

	raw, err := iss.Issue("user-1", "h", access.PrivilegeStandard)
	require.NoError(t, err)

	_, err = other.Parse(raw)
	require.Error(t, err)
}

func TestTokenIssuer_WrongIssuer(t *testing.T) {
	iss := NewTokenIssuer("secret", "sysgate", time.Minute)
	other := NewTokenIssuer("secret", "otro-servicio", time.Minute)

	raw, err := other.Issue("user-1", "h", access.PrivilegeStandard)
	require.NoError(t, err)

	_, err = iss.Parse(raw)
	require.Error(t, err)
}

func TestTokenIssuer_Expired(t *testing.T) {
	iss := NewTokenIssuer("secret", "sysgate", -2*time.Minute)

	raw, err := iss.Issue("user-1", "h", access.PrivilegeStandard)
	require.NoError(t, err)

	// El leeway es de 30s; dos minutos vencido queda afuera.
	_, err = iss.Parse(raw)
	require.Error(t, err)
}

func TestNewSessionHash_UniqueHex(t *testing.T) {
	a, err := NewSessionHash()
	require.NoError(t, err)
	b, err := NewSessionHash()
	require.NoError(t, err)

	require.Len(t, a, 64)
	require.NotEqual(t, a, b)
}
