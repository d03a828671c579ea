package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_collector/internal/config"
	"github.com/relabs-tech/motion_collector/internal/env"
	"github.com/relabs-tech/motion_collector/internal/imu"
)

// monitorEvery limits console output per topic.
const monitorEvery = 500 * time.Millisecond

// throttle lets one event per key through every interval.
type throttle struct {
	mu    sync.Mutex
	every time.Duration
	last  map[string]time.Time
}

func newThrottle(every time.Duration) *throttle {
	return &throttle{every: every, last: make(map[string]time.Time)}
}

func (t *throttle) allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.last[key]; ok && now.Sub(prev) < t.every {
		return false
	}
	t.last[key] = now
	return true
}

func formatVector(tag string, s imu.Sample3) string {
	return fmt.Sprintf("[%s] t=%9.3f  X=%8.4f  Y=%8.4f  Z=%8.4f", tag, s.Timestamp, s.X, s.Y, s.Z)
}

func formatMotion(m imu.CompositeMotionSample) string {
	return fmt.Sprintf("[MOTN] t=%9.3f  ROLL=%6.2f PITCH=%6.2f YAW=%6.2f  ROT=(%.3f, %.3f, %.3f)",
		m.Timestamp, m.Attitude.Roll, m.Attitude.Pitch, m.Attitude.Yaw,
		m.RotationRate.X, m.RotationRate.Y, m.RotationRate.Z)
}

func formatAltitude(s env.Sample) string {
	return fmt.Sprintf("[ALT ] t=%9.3f  REL=%7.2fm  P=%8.3fkPa", s.Timestamp, s.RelativeAltitude, s.Pressure)
}

type monitorTopic struct {
	stream string
	topic  string
	format func([]byte) (string, error)
}

// monitorTopics lists the configured topics in stream order. Empty topics
// are skipped. A topic shared by two streams is only decoded as the first
// of them, with a warning.
func monitorTopics(cfg *config.Config) []monitorTopic {
	vector := func(tag string) func([]byte) (string, error) {
		return func(b []byte) (string, error) {
			var s imu.Sample3
			err := json.Unmarshal(b, &s)
			return formatVector(tag, s), err
		}
	}
	all := []monitorTopic{
		{"accelerometer", cfg.TopicAccel, vector("ACC ")},
		{"gyroscope", cfg.TopicGyro, vector("GYRO")},
		{"magnetometer", cfg.TopicMag, vector("MAG ")},
		{"deviceMotion", cfg.TopicMotion, func(b []byte) (string, error) {
			var m imu.CompositeMotionSample
			err := json.Unmarshal(b, &m)
			return formatMotion(m), err
		}},
		{"altimeter", cfg.TopicAltitude, func(b []byte) (string, error) {
			var s env.Sample
			err := json.Unmarshal(b, &s)
			return formatAltitude(s), err
		}},
	}

	owner := make(map[string]string, len(all))
	var out []monitorTopic
	for _, mt := range all {
		if mt.topic == "" {
			continue
		}
		if prev, dup := owner[mt.topic]; dup {
			log.Printf("monitor: WARNING topic %s is configured for both %s and %s; showing it as %s",
				mt.topic, prev, mt.stream, prev)
			continue
		}
		owner[mt.topic] = mt.stream
		out = append(out, mt)
	}
	return out
}

// RunMonitor subscribes to every configured motion topic and prints a
// sample of the traffic until interrupted.
func RunMonitor() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDCollector + "-monitor")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("monitor: connected to MQTT broker at %s", cfg.MQTTBroker)

	th := newThrottle(monitorEvery)
	for _, mt := range monitorTopics(cfg) {
		format := mt.format
		token := client.Subscribe(mt.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			if !th.allow(msg.Topic(), time.Now()) {
				return
			}
			line, err := format(msg.Payload())
			if err != nil {
				log.Printf("monitor: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Println(line)
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("monitor: subscribed to %s (%s)", mt.topic, mt.stream)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("monitor: shutting down")
	return nil
}
