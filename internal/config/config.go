package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	Logic       LogicConfig       `json:"logic" yaml:"logic"`
	Credentials CredentialsConfig `json:"credentials" yaml:"credentials"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Email       EmailConfig       `json:"email" yaml:"email"`
	API         APIConfig         `json:"api" yaml:"api"`
	Camera      CameraConfig      `json:"camera" yaml:"camera"`
	Pipeline    PipelineConfig    `json:"pipeline" yaml:"pipeline"`
}

// LogicConfig holds the timing knobs of the mode state machine. All of them
// may change at runtime through Manager.Update without a restart.
type LogicConfig struct {
	PreAlarmDelay time.Duration `json:"pre_alarm_delay" yaml:"pre_alarm_delay"`
	AlarmDuration time.Duration `json:"alarm_duration" yaml:"alarm_duration"`
	MotionTimeout time.Duration `json:"motion_timeout" yaml:"motion_timeout"`
	PhotoInterval time.Duration `json:"photo_interval" yaml:"photo_interval"`
	PIRDebounce   time.Duration `json:"pir_debounce" yaml:"pir_debounce"`
	ReadInterval  time.Duration `json:"read_interval" yaml:"read_interval"`
	BadgeHold     time.Duration `json:"badge_hold" yaml:"badge_hold"`
	EnvInterval   time.Duration `json:"env_interval" yaml:"env_interval"`
	Tick          time.Duration `json:"tick" yaml:"tick"`
}

type CredentialsConfig struct {
	Authorized []string `json:"authorized" yaml:"authorized"`
}

type TelemetryConfig struct {
	Enabled        bool              `json:"enabled" yaml:"enabled"`
	Brokers        []string          `json:"brokers" yaml:"brokers"`
	GroupID        string            `json:"group_id" yaml:"group_id"`
	TopicPrefix    string            `json:"topic_prefix" yaml:"topic_prefix"`
	RESTEndpoint   string            `json:"rest_endpoint" yaml:"rest_endpoint"`
	RESTKey        string            `json:"rest_key" yaml:"rest_key"`
	PublishTimeout time.Duration     `json:"publish_timeout" yaml:"publish_timeout"`
	Feeds          map[string]string `json:"feeds" yaml:"feeds"`
}

type StorageConfig struct {
	LocalDSN     string        `json:"local_dsn" yaml:"local_dsn"`
	RemoteDSN    string        `json:"remote_dsn" yaml:"remote_dsn"`
	SyncInterval time.Duration `json:"sync_interval" yaml:"sync_interval"`
	SyncBatch    int           `json:"sync_batch" yaml:"sync_batch"`
	Retention    time.Duration `json:"retention" yaml:"retention"`
}

type EmailConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type CameraConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Device  int    `json:"device" yaml:"device"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Dir     string `json:"dir" yaml:"dir"`
}

type PipelineConfig struct {
	TaskBuffer int   `json:"task_buffer" yaml:"task_buffer"`
	Workers    int64 `json:"workers" yaml:"workers"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Logic: LogicConfig{
			PreAlarmDelay: 10 * time.Second,
			AlarmDuration: 5 * time.Minute,
			MotionTimeout: 60 * time.Second,
			PhotoInterval: 10 * time.Second,
			PIRDebounce:   1 * time.Second,
			ReadInterval:  500 * time.Millisecond,
			BadgeHold:     2 * time.Second,
			EnvInterval:   60 * time.Second,
			Tick:          100 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			TopicPrefix:    "boxguard.",
			PublishTimeout: 5 * time.Second,
			Feeds: map[string]string{
				"mode":           "mode",
				"alarm":          "alarm",
				"motion":         "motion",
				"temperature":    "temperature",
				"humidity":       "humidity",
				"event_log":      "event-log",
				"photos":         "photos",
				"led_control":    "led-control",
				"buzzer_control": "buzzer-control",
				"servo_control":  "servo-control",
				"stealth_mode":   "stealth-mode",
			},
		},
		Storage: StorageConfig{
			LocalDSN:     "file:boxguard.db?_pragma=busy_timeout(5000)",
			SyncInterval: 15 * time.Second,
			SyncBatch:    100,
		},
		Email:    EmailConfig{Enabled: false, Port: 587},
		API:      APIConfig{Enabled: true, Addr: ":8080"},
		Camera:   CameraConfig{Enabled: false, Width: 1280, Height: 720, Dir: "data/images"},
		Pipeline: PipelineConfig{TaskBuffer: 256, Workers: 8},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Logic.PreAlarmDelay <= 0 {
		cfg.Logic.PreAlarmDelay = def.Logic.PreAlarmDelay
	}
	if cfg.Logic.AlarmDuration <= 0 {
		cfg.Logic.AlarmDuration = def.Logic.AlarmDuration
	}
	if cfg.Logic.MotionTimeout <= 0 {
		cfg.Logic.MotionTimeout = def.Logic.MotionTimeout
	}
	if cfg.Logic.PhotoInterval <= 0 {
		cfg.Logic.PhotoInterval = def.Logic.PhotoInterval
	}
	if cfg.Logic.PIRDebounce <= 0 {
		cfg.Logic.PIRDebounce = def.Logic.PIRDebounce
	}
	if cfg.Logic.ReadInterval <= 0 {
		cfg.Logic.ReadInterval = def.Logic.ReadInterval
	}
	if cfg.Logic.BadgeHold <= 0 {
		cfg.Logic.BadgeHold = def.Logic.BadgeHold
	}
	if cfg.Logic.EnvInterval <= 0 {
		cfg.Logic.EnvInterval = def.Logic.EnvInterval
	}
	if cfg.Logic.Tick <= 0 {
		cfg.Logic.Tick = def.Logic.Tick
	}
	if cfg.Telemetry.PublishTimeout <= 0 {
		cfg.Telemetry.PublishTimeout = def.Telemetry.PublishTimeout
	}
	if len(cfg.Telemetry.Feeds) == 0 {
		cfg.Telemetry.Feeds = def.Telemetry.Feeds
	}
	if cfg.Storage.LocalDSN == "" {
		cfg.Storage.LocalDSN = def.Storage.LocalDSN
	}
	if cfg.Storage.SyncInterval <= 0 {
		cfg.Storage.SyncInterval = def.Storage.SyncInterval
	}
	if cfg.Storage.SyncBatch <= 0 {
		cfg.Storage.SyncBatch = def.Storage.SyncBatch
	}
	if cfg.Pipeline.TaskBuffer <= 0 {
		cfg.Pipeline.TaskBuffer = def.Pipeline.TaskBuffer
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = def.Pipeline.Workers
	}
	if cfg.Email.Port <= 0 {
		cfg.Email.Port = def.Email.Port
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Telemetry.Enabled {
		if len(cfg.Telemetry.Brokers) == 0 && cfg.Telemetry.RESTEndpoint == "" {
			return errors.New("telemetry requires brokers or rest_endpoint when enabled")
		}
		if len(cfg.Telemetry.Brokers) > 0 && cfg.Telemetry.GroupID == "" {
			return errors.New("telemetry.group_id required when brokers are set")
		}
	}
	if cfg.Email.Enabled {
		if cfg.Email.Host == "" || cfg.Email.From == "" || cfg.Email.To == "" {
			return errors.New("email requires host, from, to when enabled")
		}
	}
	if cfg.Logic.Tick > cfg.Logic.PreAlarmDelay {
		return fmt.Errorf("logic.tick %s exceeds pre_alarm_delay %s", cfg.Logic.Tick, cfg.Logic.PreAlarmDelay)
	}
	if len(cfg.Credentials.Authorized) == 0 {
		// Not fatal: a box without badges can still be armed from the API.
		return nil
	}
	for _, id := range cfg.Credentials.Authorized {
		if strings.TrimSpace(id) == "" {
			return errors.New("credentials.authorized contains an empty entry")
		}
	}
	return nil
}

// IsAuthorized reports whether a badge identifier is on the allow-list.
func (c *CredentialsConfig) IsAuthorized(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	for _, auth := range c.Authorized {
		if strings.TrimSpace(auth) == id {
			return true
		}
	}
	return false
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := Save(m.path, cfg); err != nil {
		return err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
