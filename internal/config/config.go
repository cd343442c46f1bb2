// Package config assembles the supervisor's configuration from the
// process environment, using the small env(k, def string) helper
// pattern the rest of this codebase's peers favor over a config library.
package config

import (
	"os"
	"strconv"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDuration(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Config holds every knob the rig's entrypoint needs to wire the
// supervisor: the serial device, GPIO line names for both cabins, the
// I2C bus name shared by the OLED and both temperature sensors, the
// calibration file paths, and the MQTT broker settings.
type Config struct {
	SerialDevice string

	CabinA CabinGPIO
	CabinB CabinGPIO

	I2CBus string

	CalibrationPathA string
	CalibrationPathB string

	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTClientID string
	StateTopic   string
	CommandTopic string

	TelemetryIntervalSeconds int
}

// CabinGPIO names the GPIO lines one cabin's engine and floor sensor bank
// are wired to, matching the rig's standard pin layout.
type CabinGPIO struct {
	Dir1Pin   string
	Dir2Pin   string
	PWMPin    string
	GroundPin string
	FirstPin  string
	SecondPin string
	ThirdPin  string
}

// FromEnv reads every setting from the process environment, defaulting to
// the rig's standard wiring where a variable is unset.
func FromEnv() Config {
	return Config{
		SerialDevice: env("ELEVATOR_SERIAL_DEVICE", "/dev/ttyAMA0"),

		CabinA: CabinGPIO{
			Dir1Pin:   env("ELEVATOR_A_DIR1_PIN", "GPIO20"),
			Dir2Pin:   env("ELEVATOR_A_DIR2_PIN", "GPIO21"),
			PWMPin:    env("ELEVATOR_A_PWM_PIN", "GPIO12"),
			GroundPin: env("ELEVATOR_A_GROUND_PIN", "GPIO28"),
			FirstPin:  env("ELEVATOR_A_FIRST_PIN", "GPIO23"),
			SecondPin: env("ELEVATOR_A_SECOND_PIN", "GPIO24"),
			ThirdPin:  env("ELEVATOR_A_THIRD_PIN", "GPIO25"),
		},
		CabinB: CabinGPIO{
			Dir1Pin:   env("ELEVATOR_B_DIR1_PIN", "GPIO19"),
			Dir2Pin:   env("ELEVATOR_B_DIR2_PIN", "GPIO26"),
			PWMPin:    env("ELEVATOR_B_PWM_PIN", "GPIO13"),
			GroundPin: env("ELEVATOR_B_GROUND_PIN", "GPIO17"),
			FirstPin:  env("ELEVATOR_B_FIRST_PIN", "GPIO27"),
			SecondPin: env("ELEVATOR_B_SECOND_PIN", "GPIO22"),
			ThirdPin:  env("ELEVATOR_B_THIRD_PIN", "GPIO6"),
		},

		I2CBus: env("ELEVATOR_I2C_BUS", "/dev/i2c-1"),

		CalibrationPathA: env("ELEVATOR_A_CALIBRATION_FILE", "calibration-a.bin"),
		CalibrationPathB: env("ELEVATOR_B_CALIBRATION_FILE", "calibration-b.bin"),

		MQTTBroker:   env("ELEVATOR_MQTT_URL", "tcp://127.0.0.1:1883"),
		MQTTUsername: os.Getenv("ELEVATOR_MQTT_USER"),
		MQTTPassword: os.Getenv("ELEVATOR_MQTT_PASS"),
		MQTTClientID: env("ELEVATOR_MQTT_CLIENT_ID", "elevator-rig"),
		StateTopic:   env("ELEVATOR_MQTT_STATE_TOPIC", "elevator-rig/state"),
		CommandTopic: env("ELEVATOR_MQTT_CMD_TOPIC", "elevator-rig/cmd"),

		TelemetryIntervalSeconds: envDuration("ELEVATOR_TELEMETRY_INTERVAL_SECONDS", 2),
	}
}
