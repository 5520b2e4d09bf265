package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"boxguard/internal/command"
	"boxguard/internal/config"
	"boxguard/internal/core"
	"boxguard/internal/photos"
	"boxguard/internal/readings"
	"boxguard/internal/telemetry"
)

type Server struct {
	cfg        *config.Manager
	ctrl       *core.Controller
	dispatcher *command.Dispatcher
	client     *telemetry.Client
	images     *photos.Store
	readings   *readings.Store
	logger     *slog.Logger
	version    string
}

func Start(ctx context.Context, cfg *config.Manager, ctrl *core.Controller, dispatcher *command.Dispatcher,
	client *telemetry.Client, images *photos.Store, readingStore *readings.Store,
	logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:        cfg,
		ctrl:       ctrl,
		dispatcher: dispatcher,
		client:     client,
		images:     images,
		readings:   readingStore,
		logger:     logger,
		version:    version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/arm", server.handleArm)
	mux.HandleFunc("/disarm", server.handleDisarm)
	mux.HandleFunc("/stealth", server.handleStealth)
	mux.HandleFunc("/events", server.handleEvents)
	mux.HandleFunc("/images", server.handleImages)
	mux.HandleFunc("/actuator", server.handleActuator)
	mux.HandleFunc("/history", server.handleHistory)
	mux.HandleFunc("/config/credentials", server.handleCredentials)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

type statusResponse struct {
	Status         core.Status `json:"status"`
	Time           string      `json:"time"`
	SampleObserved string      `json:"sample_observed_at,omitempty"`
	Version        string      `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Status:  s.ctrl.Status(),
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Version: s.version,
	}
	if s.readings != nil {
		if at := s.readings.UpdatedAt(); !at.IsZero() {
			resp.SampleObserved = at.Format(time.RFC3339Nano)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.ctrl.Arm("operator api") {
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"message": "already armed or in alarm",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "mode": "armed"})
}

func (s *Server) handleDisarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.ctrl.Disarm("operator api")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "mode": "disarmed"})
}

func (s *Server) handleStealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.ctrl.SetStealth(req.Enabled, "operator api")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stealth": req.Enabled})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		events := s.ctrl.EventsSince(since)
		writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
		return
	}
	events := s.ctrl.Events(limit)
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.images == nil {
		writeJSON(w, http.StatusOK, map[string]any{"images": []photos.Image{}})
		return
	}
	list, err := s.images.List(100)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("image listing failed", "err", err)
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": list, "count": len(list)})
}

func (s *Server) handleActuator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var req struct {
		Kind   string `json:"kind"`
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	feed, ok := actuatorFeed(req.Kind)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown actuator kind"})
		return
	}
	// Same vocabulary and discard semantics as the remote channel.
	s.dispatcher.Handle(feed, req.Action)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func actuatorFeed(kind string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "led":
		return "led_control", true
	case "buzzer", "siren":
		return "buzzer_control", true
	case "servo", "lock":
		return "servo_control", true
	case "stealth":
		return "stealth_mode", true
	default:
		return "", false
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sensor := r.URL.Query().Get("sensor")
	if sensor == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var start, end time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		start = ts
	}
	if v := r.URL.Query().Get("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		end = ts
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if s.client != nil {
		points, err := s.client.History(r.Context(), sensor, start, end, limit)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"sensor": sensor, "source": "remote", "data": points, "count": len(points),
			})
			return
		}
		if s.logger != nil {
			s.logger.Warn("remote history unavailable, serving local cache", "sensor", sensor, "err", err)
		}
	}
	s.localHistory(w, sensor, start, end, limit)
}

// localHistory serves the in-memory sample cache when the broker cannot:
// environmental sensors only, bounded by what the cache still holds.
func (s *Server) localHistory(w http.ResponseWriter, sensor string, start, end time.Time, limit int) {
	if s.readings == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "history not available"})
		return
	}
	if sensor != "temperature" && sensor != "humidity" {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no local history for sensor"})
		return
	}
	samples := s.readings.History(0)
	points := make([]telemetry.DataPoint, 0, len(samples))
	for _, sample := range samples {
		if !start.IsZero() && sample.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && sample.Timestamp.After(end) {
			continue
		}
		value := sample.Temperature
		if sensor == "humidity" {
			value = sample.Humidity
		}
		points = append(points, telemetry.DataPoint{
			Value:     value,
			CreatedAt: sample.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sensor": sensor, "source": "local", "data": points, "count": len(points),
	})
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"credentials": s.cfg.Get().Credentials,
		})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var creds config.CredentialsConfig
		if err := json.Unmarshal(body, &creds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		creds.Authorized = sanitizeList(creds.Authorized)
		current := s.cfg.Get()
		next := *current
		next.Credentials = creds
		if err := s.cfg.Update(&next); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.ctrl.UpdateConfig(&next)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func sanitizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
