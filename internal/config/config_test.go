package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, "/dev/ttyAMA0", cfg.SerialDevice)
	assert.Equal(t, "GPIO20", cfg.CabinA.Dir1Pin)
	assert.Equal(t, "GPIO19", cfg.CabinB.Dir1Pin)
	assert.Equal(t, 2, cfg.TelemetryIntervalSeconds)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ELEVATOR_SERIAL_DEVICE", "/dev/ttyUSB3")
	t.Setenv("ELEVATOR_TELEMETRY_INTERVAL_SECONDS", "5")

	cfg := FromEnv()
	assert.Equal(t, "/dev/ttyUSB3", cfg.SerialDevice)
	assert.Equal(t, 5, cfg.TelemetryIntervalSeconds)
}

func TestEnvDurationIgnoresMalformedValue(t *testing.T) {
	t.Setenv("ELEVATOR_TELEMETRY_INTERVAL_SECONDS", "not-a-number")
	cfg := FromEnv()
	assert.Equal(t, 2, cfg.TelemetryIntervalSeconds)
}
