// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
	"github.com/relabs-tech/motion_collector/internal/config"
	"github.com/relabs-tech/motion_collector/internal/sensors"
	"github.com/relabs-tech/motion_collector/internal/session"
	"github.com/relabs-tech/motion_collector/internal/stream"
)

// saveTimeout bounds how long a sink may take for one session.
const saveTimeout = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Status is the JSON body of /api/status and of websocket status replies.
type Status struct {
	Collecting   bool           `json:"collecting"`
	Simulated    bool           `json:"simulated"`
	StartedAt    time.Time      `json:"startedAt,omitzero"`
	Streams      []string       `json:"streams"`
	Availability string         `json:"availability"`
	Counts       map[string]int `json:"counts"`
	TotalSamples int64          `json:"totalSamples"`
}

// SessionSummary describes a session handed to the sink.
type SessionSummary struct {
	ID           string         `json:"id"`
	Filename     string         `json:"filename"`
	StartTime    time.Time      `json:"startTime"`
	Counts       map[string]int `json:"counts"`
	TotalSamples int64          `json:"totalSamples"`
}

// WSMessage is a command sent by the client.
type WSMessage struct {
	Action string `json:"action"` // start, stop, status
}

// WSResponse is sent back for every command.
type WSResponse struct {
	Type    string          `json:"type"` // status, saved, error
	Status  *Status         `json:"status,omitempty"`
	Session *SessionSummary `json:"session,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Collector exposes an acquisition controller over HTTP. Lifecycle commands
// from every connection are serialized.
type Collector struct {
	ctrl *acquisition.Controller
	sink session.Sink

	mu sync.Mutex
}

func NewCollector(ctrl *acquisition.Controller, sink session.Sink) *Collector {
	return &Collector{ctrl: ctrl, sink: sink}
}

// Routes registers the collector handlers on mux.
func (c *Collector) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", c.handleStatus)
	mux.HandleFunc("/ws/session", c.handleSessionWS)
}

func (c *Collector) Status() Status {
	counts := c.ctrl.Counts()
	return Status{
		Collecting:   c.ctrl.IsCollecting(),
		Simulated:    c.ctrl.Simulated(),
		StartedAt:    c.ctrl.StartedAt(),
		Streams:      c.ctrl.ActiveStreams(),
		Availability: c.ctrl.Availability(),
		Counts:       namedCounts(counts),
		TotalSamples: c.ctrl.TotalSamples(),
	}
}

func namedCounts(counts map[stream.Kind]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, n := range counts {
		out[k.String()] = n
	}
	return out
}

// Start begins a new session.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctrl.Start()
}

// Stop ends the session and hands it to the sink.
func (c *Collector) Stop(ctx context.Context) (SessionSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	snap, err := c.ctrl.StopAndSave(ctx, c.sink)
	if errors.Is(err, acquisition.ErrInvalidTransition) {
		return SessionSummary{}, err
	}
	summary := SessionSummary{
		ID:           snap.ID,
		Filename:     snap.Filename(),
		StartTime:    snap.StartTime,
		Counts:       namedCounts(snap.Counts()),
		TotalSamples: snap.TotalSamples,
	}
	return summary, err
}

func (c *Collector) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(c.Status()); err != nil {
		log.Printf("collector: json encode error: %v", err)
	}
}

// handleSessionWS runs the start/stop/status command loop for one client.
func (c *Collector) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("collector: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("collector: websocket read error: %v", err)
			}
			return
		}

		var resp WSResponse
		switch msg.Action {
		case "start":
			if err := c.Start(); err != nil {
				resp = errorResponse(err)
				break
			}
			log.Println("collector: session started")
			st := c.Status()
			resp = WSResponse{Type: "status", Status: &st}

		case "stop":
			summary, err := c.Stop(r.Context())
			switch {
			case errors.Is(err, acquisition.ErrInvalidTransition):
				resp = errorResponse(err)
			case err != nil:
				// Stopped, but the sink failed.
				resp = errorResponse(err)
				resp.Session = &summary
			default:
				log.Printf("collector: session %s saved", summary.ID)
				resp = WSResponse{Type: "saved", Session: &summary}
			}

		case "status":
			st := c.Status()
			resp = WSResponse{Type: "status", Status: &st}

		default:
			resp = errorResponse(fmt.Errorf("unknown action %q", msg.Action))
		}

		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("collector: websocket write error: %v", err)
			return
		}
	}
}

func errorResponse(err error) WSResponse {
	return WSResponse{Type: "error", Message: err.Error()}
}

// logStatus prints a status line every interval until quit closes.
func (c *Collector) logStatus(interval time.Duration, quit <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			st := c.Status()
			if !st.Collecting {
				continue
			}
			log.Printf("collector: %d samples %v (%s)", st.TotalSamples, st.Counts, st.Availability)
		}
	}
}

// RunCollector probes the platform for sensors and serves the session
// control API until interrupted. An active session is stopped and saved
// before exit.
func RunCollector() error {
	cfg := config.Get()

	src, release := sensors.Probe(cfg)
	defer release()

	ctrl := acquisition.New(src,
		acquisition.WithDiagnostics(log.Default()),
		acquisition.WithSimulator(acquisition.NewSimulator(time.Duration(cfg.SimTickInterval)*time.Millisecond)),
	)
	col := NewCollector(ctrl, session.LogSink{})

	mux := http.NewServeMux()
	col.Routes(mux)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan struct{})
	defer close(quit)
	if cfg.StatusLogInterval > 0 {
		go col.logStatus(time.Duration(cfg.StatusLogInterval)*time.Millisecond, quit)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("collector: listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	log.Println("collector: shutting down")
	if ctrl.IsCollecting() {
		if _, err := col.Stop(context.Background()); err != nil {
			log.Printf("collector: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
