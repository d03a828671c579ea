package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
	"github.com/relabs-tech/motion_collector/internal/config"
	"github.com/relabs-tech/motion_collector/internal/imu"
)

type publishFunc func(topic string, payload []byte) error

// topicEmitter publishes simulator readings as JSON, one topic per stream.
// An empty topic disables that stream.
type topicEmitter struct {
	publish publishFunc

	accelTopic  string
	gyroTopic   string
	motionTopic string

	sent   atomic.Int64
	failed atomic.Int64
}

func (e *topicEmitter) OnSimulatedTick(acc, gyro imu.Sample3, motion imu.CompositeMotionSample) {
	e.send(e.accelTopic, acc)
	e.send(e.gyroTopic, gyro)
	e.send(e.motionTopic, motion)
}

func (e *topicEmitter) send(topic string, v any) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err == nil {
		err = e.publish(topic, payload)
	}
	if err != nil {
		// Only the first failure is logged; at 100 Hz the log would flood.
		if e.failed.Add(1) == 1 {
			log.Printf("sim publisher: %s: %v", topic, err)
		}
		return
	}
	e.sent.Add(1)
}

func mqttPublisher(client mqtt.Client) publishFunc {
	return func(topic string, payload []byte) error {
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		return token.Error()
	}
}

// RunSimPublisher publishes simulated motion on the configured MQTT topics
// until interrupted, so a collector with ACQUISITION_SOURCE=mqtt can run
// without hardware.
func RunSimPublisher() error {
	cfg := config.Get()
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDPublisher)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect error: %w", token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("sim publisher: connected to %s", cfg.MQTTBroker)

	em := &topicEmitter{
		publish:     mqttPublisher(client),
		accelTopic:  cfg.TopicAccel,
		gyroTopic:   cfg.TopicGyro,
		motionTopic: cfg.TopicMotion,
	}

	sim := acquisition.NewSimulator(time.Duration(cfg.SimTickInterval) * time.Millisecond)
	if err := sim.Start(em); err != nil {
		return err
	}
	log.Printf("sim publisher: publishing every %s on %s, %s, %s",
		sim.Period(), cfg.TopicAccel, cfg.TopicGyro, cfg.TopicMotion)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	sim.Stop()
	log.Printf("sim publisher: shutting down (%d published, %d failed)", em.sent.Load(), em.failed.Load())
	return nil
}
