package sensors

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
	"github.com/relabs-tech/motion_collector/internal/env"
)

// gpsAltimeter reports GNSS altitude from NMEA GGA sentences. It stands in
// for a barometer, so Pressure is always 0.
type gpsAltimeter struct {
	port string
	baud int
	open func() (io.ReadCloser, error)
}

func newGPSAltimeter(port string, baud int) *gpsAltimeter {
	g := &gpsAltimeter{port: port, baud: baud}
	g.open = g.openSerial
	return g
}

func (g *gpsAltimeter) openSerial() (io.ReadCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              g.port,
		BaudRate:              uint(g.baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("GPS serial open (%s): %w", g.port, err)
	}
	return port, nil
}

// Subscribe opens the serial port and starts reading sentences. Closing the
// port unblocks the reader, and Unsubscribe waits for it to exit.
func (g *gpsAltimeter) Subscribe(h acquisition.Handler[env.Sample]) (acquisition.Subscription, error) {
	port, err := g.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", acquisition.ErrSubscriptionUnavailable, err)
	}

	gate := acquisition.NewGate(h)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readGGA(port, gate.Deliver)
	}()

	var once sync.Once
	return acquisition.SubscriptionFunc(func() {
		once.Do(func() {
			gate.Close()
			port.Close()
			wg.Wait()
		})
	}), nil
}

// readGGA parses NMEA lines from r until it fails, delivering one sample
// per GGA sentence with a valid fix.
func readGGA(r io.Reader, deliver acquisition.Handler[env.Sample]) {
	reader := bufio.NewReader(r)
	var reference float64
	haveReference := false

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			// Partial sentences are normal right after the port opens.
			continue
		}
		if sentence.DataType() != nmea.TypeGGA {
			continue
		}

		m := sentence.(nmea.GGA)
		if m.FixQuality == nmea.Invalid {
			deliver(env.Sample{}, fmt.Errorf("GPS: no fix (%d satellites)", m.NumSatellites))
			continue
		}
		if !haveReference {
			reference, haveReference = m.Altitude, true
		}
		deliver(env.Sample{
			Timestamp:        timestamp(time.Now()),
			RelativeAltitude: m.Altitude - reference,
		}, nil)
	}
}
