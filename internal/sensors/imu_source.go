// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
	"github.com/relabs-tech/motion_collector/internal/imu"
	"github.com/relabs-tech/motion_collector/internal/orientation"
)

// Full-scale sensitivities after mpu9250 Init: ±2g and ±250°/s.
const (
	accelLSBPerG   = 16384.0
	gyroLSBPerDegS = 131.0
)

// imuDevice is one MPU9250 on SPI. Reads are serialised because the
// accelerometer, gyroscope and composite sources share the bus.
type imuDevice struct {
	name string
	mu   sync.Mutex
	dev  *mpu9250.MPU9250
}

// openIMU initializes an MPU9250 over SPI with the given chip-select pin.
func openIMU(name, spiDev, csPin string) (*imuDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", name, spiDev, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", name, err)
	}

	// Self-test and calibration failures leave the device usable.
	if _, err := dev.SelfTest(); err != nil {
		log.Printf("Warning: %s IMU self-test failed: %v", name, err)
	} else {
		log.Printf("%s IMU self-test passed", name)
	}
	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: %s IMU calibration failed: %v", name, err)
	} else {
		log.Printf("%s IMU calibration complete", name)
	}

	return &imuDevice{name: name, dev: dev}, nil
}

func (d *imuDevice) readAccel() (x, y, z int16, err error) {
	if x, err = d.dev.GetAccelerationX(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU accel X: %w", d.name, err)
	}
	if y, err = d.dev.GetAccelerationY(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU accel Y: %w", d.name, err)
	}
	if z, err = d.dev.GetAccelerationZ(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU accel Z: %w", d.name, err)
	}
	return x, y, z, nil
}

func (d *imuDevice) readGyro() (x, y, z int16, err error) {
	if x, err = d.dev.GetRotationX(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU gyro X: %w", d.name, err)
	}
	if y, err = d.dev.GetRotationY(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU gyro Y: %w", d.name, err)
	}
	if z, err = d.dev.GetRotationZ(); err != nil {
		return 0, 0, 0, fmt.Errorf("%s IMU gyro Z: %w", d.name, err)
	}
	return x, y, z, nil
}

// Accelerometer returns a source of accelerometer readings in g.
func (d *imuDevice) Accelerometer(interval time.Duration) acquisition.Source[imu.Sample3] {
	return newPollSource(d.name+" accelerometer", interval, func() (imu.Sample3, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		x, y, z, err := d.readAccel()
		if err != nil {
			return imu.Sample3{}, err
		}
		return accelSample(timestamp(time.Now()), x, y, z), nil
	})
}

// Gyroscope returns a source of rotation-rate readings in rad/s.
func (d *imuDevice) Gyroscope(interval time.Duration) acquisition.Source[imu.Sample3] {
	return newPollSource(d.name+" gyroscope", interval, func() (imu.Sample3, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		x, y, z, err := d.readGyro()
		if err != nil {
			return imu.Sample3{}, err
		}
		return gyroSample(timestamp(time.Now()), x, y, z), nil
	})
}

// Motion returns a source of composite readings built from one
// accelerometer and one gyroscope read. The upstream driver exposes no
// magnetometer, so the magnetic field is reported as zero.
func (d *imuDevice) Motion(interval time.Duration) acquisition.Source[imu.CompositeMotionSample] {
	return newPollSource(d.name+" motion", interval, func() (imu.CompositeMotionSample, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		ax, ay, az, err := d.readAccel()
		if err != nil {
			return imu.CompositeMotionSample{}, err
		}
		gx, gy, gz, err := d.readGyro()
		if err != nil {
			return imu.CompositeMotionSample{}, err
		}
		ts := timestamp(time.Now())
		return composeMotion(accelSample(ts, ax, ay, az), gyroSample(ts, gx, gy, gz), imu.Sample3{Timestamp: ts}), nil
	})
}

func accelSample(ts float64, x, y, z int16) imu.Sample3 {
	return imu.Sample3{
		Timestamp: ts,
		X:         float64(x) / accelLSBPerG,
		Y:         float64(y) / accelLSBPerG,
		Z:         float64(z) / accelLSBPerG,
	}
}

func gyroSample(ts float64, x, y, z int16) imu.Sample3 {
	toRad := math.Pi / 180 / gyroLSBPerDegS
	return imu.Sample3{
		Timestamp: ts,
		X:         float64(x) * toRad,
		Y:         float64(y) * toRad,
		Z:         float64(z) * toRad,
	}
}

// composeMotion builds a composite reading from raw accelerometer (g),
// gyroscope (rad/s) and magnetometer samples. Gravity is the unit vector
// along the measured acceleration, which holds while the device is not
// accelerating hard; user acceleration is what remains.
func composeMotion(acc, gyro, mag imu.Sample3) imu.CompositeMotionSample {
	ts := acc.Timestamp
	gravity := imu.Sample3{Timestamp: ts}
	if n := math.Sqrt(acc.X*acc.X + acc.Y*acc.Y + acc.Z*acc.Z); n > 0 {
		gravity.X, gravity.Y, gravity.Z = acc.X/n, acc.Y/n, acc.Z/n
	}
	return imu.CompositeMotionSample{
		Timestamp:    ts,
		Attitude:     orientation.FromAccel(acc.X, acc.Y, acc.Z),
		RotationRate: imu.Sample3{Timestamp: ts, X: gyro.X, Y: gyro.Y, Z: gyro.Z},
		Gravity:      gravity,
		UserAcceleration: imu.Sample3{
			Timestamp: ts,
			X:         acc.X - gravity.X,
			Y:         acc.Y - gravity.Y,
			Z:         acc.Z - gravity.Z,
		},
		MagneticField: imu.Sample3{Timestamp: ts, X: mag.X, Y: mag.Y, Z: mag.Z},
	}
}

// timestamp converts t to seconds since the Unix epoch.
func timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
