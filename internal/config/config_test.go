package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MESSAGING_LOOKUP_TIMEOUT", "")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Messaging.LookupTimeout)
	assert.Equal(t, 256, cfg.Messaging.SendBuffer)
	assert.Equal(t, 4000, cfg.Messaging.MaxMessageLength)
	assert.Nil(t, cfg.Server.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MESSAGING_LOOKUP_TIMEOUT", "750ms")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://school.example, https://admin.school.example")
	t.Setenv("AUTH_SERVICE_URL", "http://auth:9000/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.Messaging.LookupTimeout)
	assert.Equal(t, []string{"https://school.example", "https://admin.school.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://auth:9000", cfg.Auth.ServiceURL)
}

func TestValidateRejectsPingLongerThanPongWait(t *testing.T) {
	t.Setenv("MESSAGING_PING_INTERVAL", "2m")
	t.Setenv("MESSAGING_PONG_WAIT", "1m")

	_, err := Load()
	assert.Error(t, err)
}
