package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Acquisition source selectors for ACQUISITION_SOURCE.
const (
	SourceAuto      = "auto"      // periph, then MQTT, then simulated
	SourcePeriph    = "periph"    // MPU9250 + BMP280 on the local SPI bus
	SourceMQTT      = "mqtt"      // readings published by remote producers
	SourceSimulated = "simulated" // always use the built-in simulator
)

// Config holds all application configuration values.
type Config struct {
	// Acquisition
	AcquisitionSource string

	// MQTT
	MQTTBroker            string
	MQTTClientIDCollector string
	MQTTClientIDPublisher string

	// Topics
	TopicAccel    string
	TopicGyro     string
	TopicMag      string
	TopicMotion   string
	TopicAltitude string

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string

	// BMP Hardware
	BMPSPIDevice string

	// GPS (altitude fallback when no barometer is present)
	GPSSerialPort string
	GPSBaudRate   int

	// Timing
	IMUSampleInterval int // milliseconds
	AltSampleInterval int // milliseconds
	SimTickInterval   int // milliseconds
	StatusLogInterval int // milliseconds, 0 disables

	// Web Server
	WebServerPort int
}

// Defaults returns a configuration with every optional value filled in.
func Defaults() *Config {
	return &Config{
		AcquisitionSource:     SourceAuto,
		MQTTClientIDCollector: "motion-collector",
		MQTTClientIDPublisher: "motion-sim-publisher",
		TopicAccel:            "motion/accelerometer",
		TopicGyro:             "motion/gyroscope",
		TopicMag:              "motion/magnetometer",
		TopicMotion:           "motion/device",
		TopicAltitude:         "motion/altimeter",
		IMUCSPin:              "18",
		GPSBaudRate:           9600,
		IMUSampleInterval:     10,
		AltSampleInterval:     100,
		SimTickInterval:       10,
		WebServerPort:         8080,
	}
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their Defaults value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Acquisition
	case "ACQUISITION_SOURCE":
		switch value {
		case SourceAuto, SourcePeriph, SourceMQTT, SourceSimulated:
			c.AcquisitionSource = value
		default:
			return fmt.Errorf("ACQUISITION_SOURCE must be one of auto, periph, mqtt, simulated, got %q", value)
		}

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_COLLECTOR":
		c.MQTTClientIDCollector = value
	case "MQTT_CLIENT_ID_PUBLISHER":
		c.MQTTClientIDPublisher = value

	// Topics
	case "TOPIC_ACCEL":
		c.TopicAccel = value
	case "TOPIC_GYRO":
		c.TopicGyro = value
	case "TOPIC_MAG":
		c.TopicMag = value
	case "TOPIC_MOTION":
		c.TopicMotion = value
	case "TOPIC_ALTITUDE":
		c.TopicAltitude = value

	// Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "BMP_SPI_DEVICE":
		c.BMPSPIDevice = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Timing
	case "IMU_SAMPLE_INTERVAL":
		return setInterval(&c.IMUSampleInterval, key, value, 1)
	case "ALT_SAMPLE_INTERVAL":
		return setInterval(&c.AltSampleInterval, key, value, 1)
	case "SIM_TICK_INTERVAL":
		return setInterval(&c.SimTickInterval, key, value, 1)
	case "STATUS_LOG_INTERVAL":
		return setInterval(&c.StatusLogInterval, key, value, 0)

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", port)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func setInterval(dst *int, key, value string, min int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min {
		return fmt.Errorf("%s must be at least %d ms, got %d", key, min, v)
	}
	*dst = v
	return nil
}

// validate checks that the fields required by the selected source are set.
func (c *Config) validate() error {
	switch c.AcquisitionSource {
	case SourceMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required when ACQUISITION_SOURCE=mqtt")
		}
	case SourcePeriph:
		if c.IMUSPIDevice == "" && c.BMPSPIDevice == "" && c.GPSSerialPort == "" {
			return fmt.Errorf("IMU_SPI_DEVICE, BMP_SPI_DEVICE or GPS_SERIAL_PORT is required when ACQUISITION_SOURCE=periph")
		}
	}
	if c.GPSSerialPort != "" && c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
