package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap(t *testing.T) {
	cfg := FromMap(map[string]string{
		"pairing_password": "9155",
		"Admin_Phone":      "15814015470",
		"ADMIN_PASSWORD":   "000000",
		"battery_min_mv":   "4000",
		"custom_flag":      "yes",
	})

	assert.Equal(t, "9155", cfg.PairingPassword)
	assert.Equal(t, "15814015470", cfg.AdminPhone)
	assert.Equal(t, "000000", cfg.AdminPassword)
	assert.Equal(t, 4000, cfg.BatteryMinMv)
	assert.Equal(t, DefaultBatteryMaxMv, cfg.BatteryMaxMv)
	// Unknown keys are case-normalized and kept as-is.
	assert.Equal(t, "yes", cfg.Extra["CUSTOM_FLAG"])
}

func TestFromMapDefaults(t *testing.T) {
	cfg := FromMap(nil)
	assert.Equal(t, DefaultBatteryMinMv, cfg.BatteryMinMv)
	assert.Equal(t, DefaultBatteryMaxMv, cfg.BatteryMaxMv)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"pairing_password: \"9155\"\n"+
			"admin_phone: \"15814015470\"\n"+
			"admin_password: \"000000\"\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9155", cfg.PairingPassword)
	assert.Equal(t, "15814015470", cfg.AdminPhone)
	assert.Equal(t, DefaultBatteryMinMv, cfg.BatteryMinMv)
	assert.Equal(t, DefaultBatteryMaxMv, cfg.BatteryMaxMv)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
