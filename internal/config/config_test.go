package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.App.Env)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "sysgate:access", cfg.Redis.Channel)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL())
	require.Equal(t, 720*time.Hour, cfg.SessionTTL())
	require.Equal(t, 3*time.Second, cfg.GateReadTimeout())
	require.Equal(t, time.Minute, cfg.LoginRateWindow())
	require.Equal(t, 10, cfg.Rate.Login.Limit)
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  env: staging
server:
  addr: ":9090"
gate:
  read_timeout: 5s
auth:
  jwt_secret: from-yaml
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("GATE_READ_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.App.Env)
	require.Equal(t, ":9090", cfg.Server.Addr)
	// env pisa yaml
	require.Equal(t, "from-env", cfg.Auth.JWTSecret)
	require.Equal(t, 750*time.Millisecond, cfg.GateReadTimeout())
}

func TestGateReadTimeout_InvalidFallsBack(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Gate.ReadTimeout = "garbage"
	require.Equal(t, 3*time.Second, cfg.GateReadTimeout())
}
