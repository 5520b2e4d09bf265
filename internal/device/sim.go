package device

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Simulated drivers. Each logs what the hardware would do so a bench run of
// the controller is observable end to end.

type SimMotion struct {
	triggered atomic.Bool
}

func (s *SimMotion) Trigger() { s.triggered.Store(true) }

func (s *SimMotion) MotionDetected() bool {
	return s.triggered.Swap(false)
}

type SimEnv struct {
	mu          sync.Mutex
	Temperature float64
	Humidity    float64
}

func NewSimEnv() *SimEnv {
	return &SimEnv{Temperature: 21.5, Humidity: 40}
}

func (s *SimEnv) Set(temp, humidity float64) {
	s.mu.Lock()
	s.Temperature = temp
	s.Humidity = humidity
	s.mu.Unlock()
}

func (s *SimEnv) Read() (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Temperature, s.Humidity, nil
}

type SimBadge struct {
	mu      sync.Mutex
	pending []string
}

func (s *SimBadge) Scan(id string) {
	s.mu.Lock()
	s.pending = append(s.pending, id)
	s.mu.Unlock()
}

func (s *SimBadge) Read() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return "", false, nil
	}
	id := s.pending[0]
	s.pending = s.pending[1:]
	return id, true, nil
}

type SimCamera struct {
	Dir    string
	Logger *slog.Logger
}

func (s *SimCamera) Capture(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("capture_%s.jpg", time.Now().UTC().Format("20060102_150405"))
	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(s.Dir, filename), []byte{}, 0o644); err != nil {
			return "", err
		}
	}
	if s.Logger != nil {
		s.Logger.Info("sim camera capture", "filename", filename)
	}
	return filename, nil
}

type SimLED struct {
	lit atomic.Bool
}

func (s *SimLED) On()       { s.lit.Store(true) }
func (s *SimLED) Off()      { s.lit.Store(false) }
func (s *SimLED) Lit() bool { return s.lit.Load() }

type SimSiren struct {
	Logger *slog.Logger
	active atomic.Bool
}

func (s *SimSiren) StartSiren() {
	if s.active.Swap(true) {
		return
	}
	if s.Logger != nil {
		s.Logger.Info("sim siren started")
	}
}

func (s *SimSiren) Stop() {
	if !s.active.Swap(false) {
		return
	}
	if s.Logger != nil {
		s.Logger.Info("sim siren stopped")
	}
}

func (s *SimSiren) Beep(d time.Duration)      { time.Sleep(d) }
func (s *SimSiren) BeepTwice(d time.Duration) { time.Sleep(2*d + 50*time.Millisecond) }
func (s *SimSiren) Active() bool              { return s.active.Load() }

type SimLock struct {
	LockedAngle   int
	UnlockedAngle int
	mu            sync.Mutex
	angle         int
	set           bool
}

func NewSimLock(lockedAngle, unlockedAngle int) *SimLock {
	return &SimLock{LockedAngle: lockedAngle, UnlockedAngle: unlockedAngle}
}

func (s *SimLock) Lock() error   { return s.SetAngle(s.LockedAngle) }
func (s *SimLock) Unlock() error { return s.SetAngle(s.UnlockedAngle) }

func (s *SimLock) SetAngle(deg int) error {
	if deg < 0 || deg > 180 {
		return fmt.Errorf("angle out of range: %d", deg)
	}
	s.mu.Lock()
	s.angle = deg
	s.set = true
	s.mu.Unlock()
	return nil
}

func (s *SimLock) Angle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return -1
	}
	return s.angle
}
