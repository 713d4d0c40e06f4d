package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero capacity", func(c *Config) { c.Transport.Capacity = 0 }, "capacity"},
		{"missing addr", func(c *Config) { c.Transport.Addr = "" }, "addr"},
		{"zero width", func(c *Config) { c.Camera.Width = 0 }, "dimensions"},
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }, "fps"},
		{"quality too high", func(c *Config) { c.Capture.JPEGQuality = 101 }, "jpeg_quality"},
		{"quality too low", func(c *Config) { c.Process.JPEGQuality = 0 }, "jpeg_quality"},
		{"multi-char stop key", func(c *Config) { c.Capture.StopKey = "quit" }, "stop_key"},
		{"zero mask scale", func(c *Config) { c.Segment.MaskScale = 0 }, "mask_scale"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestManagerCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	cfg := m.Get()
	if cfg.Transport.Addr != "localhost:6100" {
		t.Errorf("Transport.Addr = %q, want default", cfg.Transport.Addr)
	}
	if cfg.Transport.Capacity != 2 {
		t.Errorf("Transport.Capacity = %d, want 2", cfg.Transport.Capacity)
	}
}

func TestManagerLoadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	seed := Defaults()
	seed.Transport.Addr = "localhost:7200"
	seed.Transport.Capacity = 8
	seed.Segment.Threshold = 32
	data, err := yaml.Marshal(seed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.Transport.Addr != "localhost:7200" {
		t.Errorf("Transport.Addr = %q", cfg.Transport.Addr)
	}
	if cfg.Transport.Capacity != 8 {
		t.Errorf("Transport.Capacity = %d", cfg.Transport.Capacity)
	}
	if cfg.Segment.Threshold != 32 {
		t.Errorf("Segment.Threshold = %d", cfg.Segment.Threshold)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "transport:\n  addr: localhost:9999\n  capacity: 4\n"
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.Transport.Addr != "localhost:9999" {
		t.Errorf("Transport.Addr = %q", cfg.Transport.Addr)
	}
	if cfg.Camera.Width != 320 || cfg.Camera.Height != 240 {
		t.Errorf("camera defaults lost: %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Capture.StopKey != "q" {
		t.Errorf("stop key default lost: %q", cfg.Capture.StopKey)
	}
}

func TestManagerRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	bad := "transport:\n  addr: localhost:6100\n  capacity: 0\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewManager(path); err == nil {
		t.Error("invalid config file accepted")
	}
}

func TestUpdateValidatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := m.Get()
	cfg.Transport.Capacity = 0
	if err := m.Update(cfg); err == nil {
		t.Fatal("invalid update accepted")
	}

	cfg = m.Get()
	cfg.Process.OutputDir = "elsewhere"
	if err := m.Update(cfg); err != nil {
		t.Fatalf("Update: %v", err)
	}

	m2, err := NewManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := m2.Get().Process.OutputDir; got != "elsewhere" {
		t.Errorf("OutputDir = %q after reload, want %q", got, "elsewhere")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	a := m.Get()
	a.Transport.Capacity = 999
	if m.Get().Transport.Capacity == 999 {
		t.Error("Get returned a shared config")
	}
}
