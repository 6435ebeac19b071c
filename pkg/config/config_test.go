package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CARD_APPROVAL_RATE", "")
	t.Setenv("PIX_EXPIRATION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.CardApprovalRate)
	assert.Equal(t, 30*time.Minute, cfg.PixExpiration)
	assert.Equal(t, 5, cfg.WebhookMaxAttempts)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CARD_APPROVAL_RATE", "0")
	t.Setenv("PIX_EXPIRATION", "1h")
	t.Setenv("PSP_NAME", "sandbox")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.CardApprovalRate)
	assert.Equal(t, time.Hour, cfg.PixExpiration)
	assert.Equal(t, "sandbox", cfg.PSP.Name)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CARD_APPROVAL_RATE", "1.5")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CARD_APPROVAL_RATE", "")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "many")
	_, err = Load()
	assert.Error(t, err)
}
