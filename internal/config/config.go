package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maskpipe/maskpipe/internal/logger"
	"gopkg.in/yaml.v3"
)

// RGB is a color expressed as its three 8-bit channels.
type RGB struct {
	R uint8 `yaml:"r"`
	G uint8 `yaml:"g"`
	B uint8 `yaml:"b"`
}

// TransportConfig configures the frame link between the two processes.
type TransportConfig struct {
	// Addr is the address the processing side listens on and the capture
	// side dials.
	Addr string `yaml:"addr"`

	// Capacity is the number of frames buffered before the oldest is
	// dropped. It bounds capture-to-inference lag; correctness does not
	// depend on any particular value.
	Capacity int `yaml:"capacity"`
}

// CameraConfig configures the capture device.
type CameraConfig struct {
	// Backend selects the camera: "v4l2", "x11", "synthetic", or "auto"
	// to try them in that order.
	Backend string `yaml:"backend"`
	Device  string `yaml:"device"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`

	// Screen region origin, used by the x11 backend only.
	ScreenX int `yaml:"screen_x"`
	ScreenY int `yaml:"screen_y"`
}

// CaptureConfig configures the capture process.
type CaptureConfig struct {
	StopKey     string `yaml:"stop_key"`
	Preview     bool   `yaml:"preview"`
	PreviewAddr string `yaml:"preview_addr"`
	JPEGQuality int    `yaml:"jpeg_quality"`

	// MaxFrames stops capture after this many frames; 0 means unlimited.
	MaxFrames uint64 `yaml:"max_frames"`

	LogEvery int `yaml:"log_every"`
}

// SegmentConfig configures the built-in background remover.
type SegmentConfig struct {
	KeyColor   RGB `yaml:"key_color"`
	Threshold  int `yaml:"threshold"`
	Background RGB `yaml:"background"`

	// MaskScale computes the mask at 1/n resolution; 1 disables scaling.
	MaskScale int `yaml:"mask_scale"`
}

// ProcessConfig configures the processing process.
type ProcessConfig struct {
	OutputDir   string `yaml:"output_dir"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	LogEvery    int    `yaml:"log_every"`
}

// Config represents the application configuration
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Transport TransportConfig `yaml:"transport"`
	Camera    CameraConfig    `yaml:"camera"`
	Capture   CaptureConfig   `yaml:"capture"`
	Segment   SegmentConfig   `yaml:"segment"`
	Process   ProcessConfig   `yaml:"process"`
}

// Validate checks the fields both processes depend on.
func (c *Config) Validate() error {
	if c.Transport.Capacity < 1 {
		return fmt.Errorf("transport.capacity must be >= 1, got %d", c.Transport.Capacity)
	}
	if c.Transport.Addr == "" {
		return fmt.Errorf("transport.addr is required")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera dimensions must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS < 1 {
		return fmt.Errorf("camera.fps must be >= 1, got %d", c.Camera.FPS)
	}
	if q := c.Capture.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("capture.jpeg_quality must be in [1,100], got %d", q)
	}
	if q := c.Process.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("process.jpeg_quality must be in [1,100], got %d", q)
	}
	if len(c.Capture.StopKey) != 1 {
		return fmt.Errorf("capture.stop_key must be a single character, got %q", c.Capture.StopKey)
	}
	if c.Segment.MaskScale < 1 {
		return fmt.Errorf("segment.mask_scale must be >= 1, got %d", c.Segment.MaskScale)
	}
	return nil
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "maskpipe")
	actualConfigPath := filepath.Join(configDir, "config.yaml")
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := m.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		Transport: TransportConfig{
			Addr:     "localhost:6100",
			Capacity: 2,
		},
		Camera: CameraConfig{
			Backend: "auto",
			Device:  "/dev/video0",
			Width:   320,
			Height:  240,
			FPS:     5,
		},
		Capture: CaptureConfig{
			StopKey:     "q",
			Preview:     true,
			PreviewAddr: "localhost:8090",
			JPEGQuality: 85,
			LogEvery:    30,
		},
		Segment: SegmentConfig{
			KeyColor:   RGB{R: 0, G: 255, B: 0},
			Threshold:  96,
			Background: RGB{R: 192, G: 192, B: 192},
			MaskScale:  1,
		},
		Process: ProcessConfig{
			OutputDir:   "output_frames",
			JPEGQuality: 85,
			LogEvery:    30,
		},
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Update replaces the configuration and persists it.
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved")
	return nil
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
