package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"boxguard/internal/command"
	"boxguard/internal/config"
	"boxguard/internal/core"
	"boxguard/internal/device"
	"boxguard/internal/model"
	"boxguard/internal/photos"
	"boxguard/internal/readings"
	"boxguard/internal/telemetry"
)

type noopQueue struct{}

func (noopQueue) Enqueue(model.Task) bool { return true }

func newTestServer(t *testing.T) (*Server, *core.Controller) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	manager, err := config.NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	led := &device.SimLED{}
	siren := &device.SimSiren{}
	lock := device.NewSimLock(90, 0)
	devices := core.Devices{
		Motion: &device.SimMotion{},
		Env:    device.NewSimEnv(),
		Badge:  &device.SimBadge{},
		LED:    led,
		Siren:  siren,
		Lock:   lock,
	}
	readingStore := readings.NewStore(10)
	ctrl := core.NewController(manager.Get(), devices, noopQueue{}, nil, readingStore, nil, nil)
	dispatcher := command.NewDispatcher(ctrl, led, siren, lock, nil, nil)
	s := &Server{
		cfg:        manager,
		ctrl:       ctrl,
		dispatcher: dispatcher,
		images:     photos.NewStore(t.TempDir()),
		readings:   readingStore,
		version:    "test",
	}
	return s, ctrl
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status.Mode != model.ModeDisarmed {
		t.Fatalf("mode = %s, want disarmed", resp.Status.Mode)
	}
	if resp.Version != "test" {
		t.Fatalf("version = %q, want test", resp.Version)
	}
}

func TestArmEndpoint(t *testing.T) {
	s, ctrl := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleArm(rec, httptest.NewRequest(http.MethodPost, "/arm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ctrl.Mode() != model.ModeArmed {
		t.Fatalf("mode = %s, want armed", ctrl.Mode())
	}

	// Arming an already armed system is a conflict.
	rec = httptest.NewRecorder()
	s.handleArm(rec, httptest.NewRequest(http.MethodPost, "/arm", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestArmRequiresPost(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleArm(rec, httptest.NewRequest(http.MethodGet, "/arm", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestDisarmEndpoint(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.Arm("test")
	rec := httptest.NewRecorder()
	s.handleDisarm(rec, httptest.NewRequest(http.MethodPost, "/disarm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ctrl.Mode() != model.ModeDisarmed {
		t.Fatalf("mode = %s, want disarmed", ctrl.Mode())
	}
}

func TestStealthEndpoint(t *testing.T) {
	s, ctrl := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/stealth", strings.NewReader(`{"enabled":true}`))
	s.handleStealth(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, stealth := ctrl.Snapshot(); !stealth {
		t.Fatalf("expected stealth enabled")
	}
}

func TestEventsEndpoint(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.Arm("test")
	ctrl.Disarm("test")
	rec := httptest.NewRecorder()
	s.handleEvents(rec, httptest.NewRequest(http.MethodGet, "/events?limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Events []model.SecurityEvent `json:"events"`
		Count  int                   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Events[0].Type != model.EventDisarm {
		t.Fatalf("newest event = %s, want DISARM", resp.Events[0].Type)
	}
}

func TestActuatorEndpoint(t *testing.T) {
	s, ctrl := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/actuator", strings.NewReader(`{"kind":"servo","action":"lock"}`))
	s.handleActuator(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if st := ctrl.Status(); st.LockAngle != 90 {
		t.Fatalf("lock angle = %d, want 90", st.LockAngle)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/actuator", strings.NewReader(`{"kind":"toaster","action":"on"}`))
	s.handleActuator(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown kind", rec.Code)
	}
}

func TestCredentialsEndpoint(t *testing.T) {
	s, ctrl := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/config/credentials",
		strings.NewReader(`{"authorized":["04a1b2c3"," ",""]}`))
	s.handleCredentials(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := s.cfg.Get().Credentials
	if len(got.Authorized) != 1 || got.Authorized[0] != "04a1b2c3" {
		t.Fatalf("authorized = %v, want sanitized single entry", got.Authorized)
	}

	// The running controller picks up the new allow-list immediately.
	ctrl.HandleBadge("04a1b2c3")
	if ctrl.Mode() != model.ModeArmed {
		t.Fatalf("mode = %s, want armed after authorized badge", ctrl.Mode())
	}

	rec = httptest.NewRecorder()
	s.handleCredentials(rec, httptest.NewRequest(http.MethodGet, "/config/credentials", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHistoryServedFromLocalCache(t *testing.T) {
	s, _ := newTestServer(t)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.readings.Update(model.EnvironmentalSample{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Temperature: 20 + float64(i),
			Humidity:    40 + float64(i),
		})
	}

	// No telemetry client is wired, so the cache answers directly.
	rec := httptest.NewRecorder()
	s.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/history?sensor=temperature&limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Source string                `json:"source"`
		Data   []telemetry.DataPoint `json:"data"`
		Count  int                   `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != "local" {
		t.Fatalf("source = %q, want local", resp.Source)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2 newest samples", resp.Count)
	}
	if got, ok := resp.Data[1].Value.(float64); !ok || got != 22 {
		t.Fatalf("newest value = %v, want 22", resp.Data[1].Value)
	}

	// Window filtering applies before the limit.
	rec = httptest.NewRecorder()
	s.handleHistory(rec, httptest.NewRequest(http.MethodGet,
		"/history?sensor=humidity&end="+base.Format(time.RFC3339), nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1 sample inside window", resp.Count)
	}
}

func TestHistoryUnknownSensor(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/history?sensor=seismograph", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown sensor", rec.Code)
	}
}

func TestEventsSinceFilter(t *testing.T) {
	s, ctrl := newTestServer(t)
	ctrl.Arm("test")
	cut := time.Now().UTC()
	ctrl.Disarm("test")

	rec := httptest.NewRecorder()
	s.handleEvents(rec, httptest.NewRequest(http.MethodGet,
		"/events?since="+cut.Format(time.RFC3339Nano), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Events []model.SecurityEvent `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, ev := range resp.Events {
		if ev.Type == model.EventArm {
			t.Fatalf("ARM predates the since cutoff, must be filtered out")
		}
	}
	if len(resp.Events) == 0 || resp.Events[len(resp.Events)-1].Type != model.EventDisarm {
		t.Fatalf("events = %v, want trailing DISARM", resp.Events)
	}

	rec = httptest.NewRecorder()
	s.handleEvents(rec, httptest.NewRequest(http.MethodGet, "/events?since=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed since", rec.Code)
	}
}

func TestStatusReportsSampleAge(t *testing.T) {
	s, _ := newTestServer(t)
	s.readings.Update(model.EnvironmentalSample{
		Timestamp:   time.Now().UTC(),
		Temperature: 21.5,
		Humidity:    44,
	})
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SampleObserved == "" {
		t.Fatalf("sample_observed_at missing after a cached sample")
	}
	if _, err := time.Parse(time.RFC3339Nano, resp.SampleObserved); err != nil {
		t.Fatalf("sample_observed_at not RFC3339: %v", err)
	}
}
