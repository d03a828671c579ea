package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Full(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
# acquisition
ACQUISITION_SOURCE = mqtt
MQTT_BROKER=tcp://localhost:1883
MQTT_CLIENT_ID_COLLECTOR=c1
TOPIC_ACCEL=a
TOPIC_GYRO=g
TOPIC_MAG=m
TOPIC_MOTION=d
TOPIC_ALTITUDE=alt
IMU_SPI_DEVICE=/dev/spidev0.0
IMU_CS_PIN=8
BMP_SPI_DEVICE=/dev/spidev0.1
GPS_SERIAL_PORT=/dev/serial0
GPS_BAUD_RATE=38400
IMU_SAMPLE_INTERVAL=20
ALT_SAMPLE_INTERVAL=250
SIM_TICK_INTERVAL=5
STATUS_LOG_INTERVAL=0
WEB_SERVER_PORT=9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourceMQTT, cfg.AcquisitionSource)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "c1", cfg.MQTTClientIDCollector)
	assert.Equal(t, "motion-sim-publisher", cfg.MQTTClientIDPublisher)
	assert.Equal(t, "alt", cfg.TopicAltitude)
	assert.Equal(t, "8", cfg.IMUCSPin)
	assert.Equal(t, 38400, cfg.GPSBaudRate)
	assert.Equal(t, 20, cfg.IMUSampleInterval)
	assert.Equal(t, 250, cfg.AltSampleInterval)
	assert.Equal(t, 5, cfg.SimTickInterval)
	assert.Equal(t, 0, cfg.StatusLogInterval)
	assert.Equal(t, 9000, cfg.WebServerPort)
}

func TestLoad_DefaultsForMissingKeys(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "# nothing configured\n"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed line", "MQTT_BROKER\n", "invalid config line 1"},
		{"unknown key", "NOPE=1\n", `unknown config key: "NOPE"`},
		{"bad source", "ACQUISITION_SOURCE=usb\n", "ACQUISITION_SOURCE must be one of"},
		{"bad interval", "IMU_SAMPLE_INTERVAL=fast\n", "invalid IMU_SAMPLE_INTERVAL"},
		{"zero interval", "SIM_TICK_INTERVAL=0\n", "SIM_TICK_INTERVAL must be at least 1 ms"},
		{"bad port", "WEB_SERVER_PORT=70000\n", "WEB_SERVER_PORT must be 1-65535"},
		{"mqtt without broker", "ACQUISITION_SOURCE=mqtt\n", "MQTT_BROKER is required"},
		{"periph without devices", "ACQUISITION_SOURCE=periph\n", "required when ACQUISITION_SOURCE=periph"},
		{"gps without baud", "GPS_SERIAL_PORT=/dev/ttyUSB0\nGPS_BAUD_RATE=0\n", "GPS_BAUD_RATE is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
