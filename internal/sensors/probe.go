// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors is the platform layer: it discovers which acquisition
// sources exist at runtime and exposes them as acquisition.Sources.
package sensors

import (
	"log"
	"time"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
	"github.com/relabs-tech/motion_collector/internal/config"
)

// Probe returns the sources selected by cfg.AcquisitionSource. Sensors that
// cannot be opened are left nil; an empty result makes the controller fall
// back to simulated data. The release func frees whatever was opened.
func Probe(cfg *config.Config) (acquisition.Sources, func()) {
	switch cfg.AcquisitionSource {
	case config.SourceSimulated:
		log.Println("sensors: simulated source selected")
		return acquisition.Sources{}, func() {}

	case config.SourcePeriph:
		return periphSources(cfg)

	case config.SourceMQTT:
		return mqttOrNothing(cfg)
	}

	src, release := periphSources(cfg)
	if !empty(src) {
		return src, release
	}
	release()
	if cfg.MQTTBroker == "" {
		log.Println("sensors: no local sensors and no MQTT broker configured")
		return acquisition.Sources{}, func() {}
	}
	return mqttOrNothing(cfg)
}

func mqttOrNothing(cfg *config.Config) (acquisition.Sources, func()) {
	src, release, err := mqttSources(cfg)
	if err != nil {
		log.Printf("sensors: %v", err)
		return acquisition.Sources{}, func() {}
	}
	log.Printf("sensors: using MQTT broker %s", cfg.MQTTBroker)
	return src, release
}

// periphSources opens the local SPI and serial devices that are configured.
func periphSources(cfg *config.Config) (acquisition.Sources, func()) {
	var src acquisition.Sources
	var closers []func() error

	imuInterval := time.Duration(cfg.IMUSampleInterval) * time.Millisecond
	altInterval := time.Duration(cfg.AltSampleInterval) * time.Millisecond

	if cfg.IMUSPIDevice != "" {
		dev, err := openIMU("main", cfg.IMUSPIDevice, cfg.IMUCSPin)
		if err != nil {
			log.Printf("sensors: %v", err)
		} else {
			log.Printf("sensors: IMU on %s (magnetometer not available through this driver)", cfg.IMUSPIDevice)
			src.Accelerometer = dev.Accelerometer(imuInterval)
			src.Gyroscope = dev.Gyroscope(imuInterval)
			src.Motion = dev.Motion(imuInterval)
		}
	}

	if cfg.BMPSPIDevice != "" {
		baro, err := openBarometer(cfg.BMPSPIDevice, altInterval)
		if err != nil {
			log.Printf("sensors: %v", err)
		} else {
			log.Printf("sensors: barometer on %s", cfg.BMPSPIDevice)
			src.Altimeter = baro
			closers = append(closers, baro.Close)
		}
	}

	if src.Altimeter == nil && cfg.GPSSerialPort != "" {
		log.Printf("sensors: GNSS altitude from %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)
		src.Altimeter = newGPSAltimeter(cfg.GPSSerialPort, cfg.GPSBaudRate)
	}

	return src, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Printf("sensors: close: %v", err)
			}
		}
	}
}

func empty(s acquisition.Sources) bool {
	return s.Accelerometer == nil && s.Gyroscope == nil && s.Magnetometer == nil &&
		s.Motion == nil && s.Altimeter == nil
}
