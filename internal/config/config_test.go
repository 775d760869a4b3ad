package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBroker, cfg.Broker)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultBaseInterval, cfg.BaseInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_FlagsOverrideDefaults(t *testing.T) {
	cfg, err := Parse([]string{"--broker", "mesh.local", "--port", "8883", "--sector", "sector2", "--interval", "7", "-v"})
	require.NoError(t, err)
	assert.Equal(t, "mesh.local", cfg.Broker)
	assert.Equal(t, 8883, cfg.Port)
	assert.Equal(t, "sector2", cfg.SectorHint)
	assert.Equal(t, 7, cfg.BaseInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_RejectsUnknownSector(t *testing.T) {
	_, err := Parse([]string{"--sector", "sector9"})
	assert.Error(t, err)
}

func TestParse_RejectsNonPositiveInterval(t *testing.T) {
	_, err := Parse([]string{"--interval", "0"})
	assert.Error(t, err)
}
