package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
	"github.com/relabs-tech/motion_collector/internal/config"
	"github.com/relabs-tech/motion_collector/internal/env"
	"github.com/relabs-tech/motion_collector/internal/imu"
	"github.com/relabs-tech/motion_collector/internal/session"
)

type stepTicker struct{ ch chan time.Time }

func (s *stepTicker) Func(time.Duration) (<-chan time.Time, func()) { return s.ch, func() {} }

// Tick blocks until the simulator has taken n ticks.
func (s *stepTicker) Tick(n int) {
	for range n {
		s.ch <- time.Time{}
	}
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []session.Snapshot
	err   error
}

func (r *recordingSink) SaveAndUpload(_ context.Context, snap session.Snapshot, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return r.err
}

func newTestServer(t *testing.T, sink session.Sink) (*httptest.Server, *stepTicker) {
	t.Helper()
	tk := &stepTicker{ch: make(chan time.Time)}
	sim := acquisition.NewSimulator(10 * time.Millisecond).WithTicker(tk.Func)
	ctrl := acquisition.New(acquisition.Sources{}, acquisition.WithSimulator(sim))

	mux := http.NewServeMux()
	NewCollector(ctrl, sink).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, tk
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func command(t *testing.T, conn *websocket.Conn, action string) WSResponse {
	t.Helper()
	require.NoError(t, conn.WriteJSON(WSMessage{Action: action}))
	var resp WSResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestStatusEndpoint_Idle(t *testing.T) {
	srv, _ := newTestServer(t, &recordingSink{})

	res, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var st Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	assert.False(t, st.Collecting)
	assert.Zero(t, st.TotalSamples)
	assert.Len(t, st.Counts, 5)
}

func TestSessionWebsocket_StartStop(t *testing.T) {
	sink := &recordingSink{}
	srv, tk := newTestServer(t, sink)
	conn := dial(t, srv)

	resp := command(t, conn, "start")
	require.Equal(t, "status", resp.Type, resp.Message)
	require.NotNil(t, resp.Status)
	assert.True(t, resp.Status.Collecting)
	assert.True(t, resp.Status.Simulated)

	tk.Tick(10)

	resp = command(t, conn, "stop")
	require.Equal(t, "saved", resp.Type, resp.Message)
	require.NotNil(t, resp.Session)
	assert.Equal(t, int64(30), resp.Session.TotalSamples)
	assert.Equal(t, 10, resp.Session.Counts["accelerometer"])
	assert.Equal(t, 10, resp.Session.Counts["gyroscope"])
	assert.Equal(t, 10, resp.Session.Counts["deviceMotion"])
	assert.Zero(t, resp.Session.Counts["magnetometer"])
	assert.True(t, strings.HasPrefix(resp.Session.Filename, "sensor_data_"))

	sink.mu.Lock()
	require.Len(t, sink.snaps, 1)
	assert.Equal(t, resp.Session.ID, sink.snaps[0].ID)
	sink.mu.Unlock()

	resp = command(t, conn, "status")
	require.NotNil(t, resp.Status)
	assert.False(t, resp.Status.Collecting)
	assert.Equal(t, int64(30), resp.Status.TotalSamples)
}

func TestSessionWebsocket_InvalidCommands(t *testing.T) {
	srv, _ := newTestServer(t, &recordingSink{})
	conn := dial(t, srv)

	resp := command(t, conn, "stop")
	assert.Equal(t, "error", resp.Type)
	assert.Nil(t, resp.Session)

	resp = command(t, conn, "rewind")
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Message, "rewind")

	require.Equal(t, "status", command(t, conn, "start").Type)
	resp = command(t, conn, "start")
	assert.Equal(t, "error", resp.Type)
}

func TestSessionWebsocket_SinkFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	srv, tk := newTestServer(t, sink)
	conn := dial(t, srv)

	require.Equal(t, "status", command(t, conn, "start").Type)
	tk.Tick(2)

	resp := command(t, conn, "stop")
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Message, "disk full")
	require.NotNil(t, resp.Session)
	assert.Equal(t, int64(6), resp.Session.TotalSamples)

	// The session is over even though saving failed.
	assert.False(t, command(t, conn, "status").Status.Collecting)
}

func TestTopicEmitter(t *testing.T) {
	got := map[string][]byte{}
	em := &topicEmitter{
		publish: func(topic string, payload []byte) error {
			got[topic] = payload
			return nil
		},
		accelTopic:  "motion/accelerometer",
		motionTopic: "motion/device",
	}

	em.OnSimulatedTick(imu.Sample3{Timestamp: 0.01, X: 1}, imu.Sample3{Timestamp: 0.01}, imu.CompositeMotionSample{Timestamp: 0.01})

	assert.Len(t, got, 2, "empty gyroscope topic is skipped")
	assert.JSONEq(t, `{"timestamp":0.01,"x":1,"y":0,"z":0}`, string(got["motion/accelerometer"]))
	assert.Contains(t, string(got["motion/device"]), `"rotationRate"`)
	assert.Equal(t, int64(2), em.sent.Load())

	em.publish = func(string, []byte) error { return errors.New("not connected") }
	em.OnSimulatedTick(imu.Sample3{}, imu.Sample3{}, imu.CompositeMotionSample{})
	assert.Equal(t, int64(2), em.failed.Load())
	assert.Equal(t, int64(2), em.sent.Load())
}

func TestThrottle(t *testing.T) {
	th := newThrottle(time.Second)
	t0 := time.Unix(100, 0)

	assert.True(t, th.allow("a", t0))
	assert.False(t, th.allow("a", t0.Add(500*time.Millisecond)))
	assert.True(t, th.allow("b", t0.Add(500*time.Millisecond)), "keys are independent")
	assert.True(t, th.allow("a", t0.Add(time.Second)))
}

func TestMonitorTopics_DuplicateTopicWarns(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	cfg := config.Defaults()
	cfg.TopicMag = cfg.TopicGyro
	cfg.TopicAltitude = ""

	got := monitorTopics(cfg)
	var streams []string
	for _, mt := range got {
		streams = append(streams, mt.stream)
	}
	assert.Equal(t, []string{"accelerometer", "gyroscope", "deviceMotion"}, streams)
	assert.Contains(t, buf.String(), "gyroscope and magnetometer")

	line, err := got[1].format([]byte(`{"timestamp":2,"x":1}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "[GYRO]"), line)
}

func TestMonitorFormatting(t *testing.T) {
	line := formatVector("ACC ", imu.Sample3{Timestamp: 1.5, X: 0.25, Y: -1, Z: 0})
	assert.Equal(t, "[ACC ] t=    1.500  X=  0.2500  Y= -1.0000  Z=  0.0000", line)

	assert.Contains(t, formatAltitude(env.Sample{RelativeAltitude: 12.5, Pressure: 101.3}), "REL=  12.50m")
}
