package sensors

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
	"github.com/relabs-tech/motion_collector/internal/env"
)

// barometer is a BMP280/BME280 on SPI used as an altimeter.
type barometer struct {
	mu   sync.Mutex
	bus  spi.PortCloser
	dev  *bmxx80.Dev
	rate time.Duration
}

// openBarometer initializes the BMP sensor on the given SPI device.
func openBarometer(spiDev string, interval time.Duration) (*barometer, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("BMP SPI open (%s): %w", spiDev, err)
	}

	dev, err := bmxx80.NewSPI(bus, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("BMP init: %w", err)
	}

	return &barometer{bus: bus, dev: dev, rate: interval}, nil
}

// senseKPa reads one pressure value in kPa.
func (b *barometer) senseKPa() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return 0, fmt.Errorf("BMP sense: %w", err)
	}
	return float64(e.Pressure) / float64(physic.KiloPascal), nil
}

// Subscribe polls the barometer. Altitude is relative to the first
// reading of each subscription.
func (b *barometer) Subscribe(h acquisition.Handler[env.Sample]) (acquisition.Subscription, error) {
	return newPollSource("barometer", b.rate, newAltitudeTracker(b.senseKPa).next).Subscribe(h)
}

func (b *barometer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev.Halt(); err != nil {
		return err
	}
	return b.bus.Close()
}

// altitudeTracker converts successive pressure readings into altitude
// relative to the first successful one.
type altitudeTracker struct {
	read      func() (float64, error)
	reference float64
}

func newAltitudeTracker(read func() (float64, error)) *altitudeTracker {
	return &altitudeTracker{read: read}
}

func (a *altitudeTracker) next() (env.Sample, error) {
	p, err := a.read()
	if err != nil {
		return env.Sample{}, err
	}
	if p <= 0 {
		return env.Sample{}, fmt.Errorf("BMP: implausible pressure %.3f kPa", p)
	}
	if a.reference == 0 {
		a.reference = p
	}
	return env.Sample{
		Timestamp:        timestamp(time.Now()),
		RelativeAltitude: env.RelativeAltitude(p, a.reference),
		Pressure:         p,
	}, nil
}
