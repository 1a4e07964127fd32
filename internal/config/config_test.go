package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  addr: ":3000"
db:
  dsn: postgres://localhost/payments
school:
  id: school-1
gateway:
  endpoint: https://gateway.example/create-collect-request
  secret_key: pg-secret
  callback_url: https://school.example/callback
auth:
  jwt_secret: jwt-secret
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "Edviron-Vanilla", cfg.School.GatewayName)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout())
	assert.Equal(t, 5.0, cfg.RateLimit.RPS)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, "payments.status", cfg.Events.Subject)
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, 30*time.Minute, cfg.OrphanAfter())
	assert.Empty(t, cfg.Webhook.Secret)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("SCHOOL_ID", "school-env")
	t.Setenv("PG_SECRET_KEY", "env-secret")
	t.Setenv("PG_API_KEY", "env-api")
	t.Setenv("CALLBACK_URL", "https://env.example/cb")
	t.Setenv("PAYMENT_API_URL", "https://env.example/pay")
	t.Setenv("JWT_SECRET", "env-jwt")
	t.Setenv("DB_DRIVER", "MEMORY")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("SWEEP_ORPHAN_AFTER_MINUTES", "5")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "school-env", cfg.School.ID)
	assert.Equal(t, "env-secret", cfg.Gateway.SecretKey)
	assert.Equal(t, "env-api", cfg.Gateway.APIKey)
	assert.Equal(t, "https://env.example/cb", cfg.Gateway.CallbackURL)
	assert.Equal(t, "https://env.example/pay", cfg.Gateway.Endpoint)
	assert.Equal(t, "env-jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, DriverMemory, cfg.DB.Driver)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 5*time.Minute, cfg.OrphanAfter())
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing addr", `db: {dsn: x}`},
		{"postgres without dsn", "server: {addr: ':1'}\nschool: {id: s}"},
		{"unknown driver", "server: {addr: ':1'}\ndb: {driver: mongo}"},
		{"missing school", "server: {addr: ':1'}\ndb: {driver: memory}"},
		{"missing gateway", "server: {addr: ':1'}\ndb: {driver: memory}\nschool: {id: s}"},
		{"missing jwt secret", "server: {addr: ':1'}\ndb: {driver: memory}\nschool: {id: s}\ngateway: {endpoint: e, secret_key: k, callback_url: c}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FromConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
