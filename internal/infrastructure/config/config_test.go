package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
discovery:
  scan_on_startup: true
  scan_duration: 10s
devices:
  - id: "kitchen"
    type: "qudp"
    config:
      name: "Kitchen"
      ip_address: "192.168.1.40"
      port: 7777
      pixel_count: 120
      strip_index: 2
      silence_timeout: 5
displays:
  - id: "kitchen-left"
    config:
      name: "Kitchen Left"
      refresh_rate: 30
    segments:
      - device: "kitchen"
        start: 0
        end: 59
      - device: "kitchen"
        start: 60
        end: 119
        flip: true
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if cfg.Discovery.ScanDuration != 10*time.Second {
		t.Errorf("Discovery.ScanDuration = %v, want 10s", cfg.Discovery.ScanDuration)
	}
	if len(cfg.Devices) != 1 {
		t.Fatalf("len(Devices) = %d, want 1", len(cfg.Devices))
	}

	dev := cfg.Devices[0].Config
	if dev.RefreshRate != DefaultRefreshRate {
		t.Errorf("RefreshRate = %d, want default %d", dev.RefreshRate, DefaultRefreshRate)
	}
	if dev.StripIndex != 2 {
		t.Errorf("StripIndex = %d, want 2", dev.StripIndex)
	}
	if dev.SilenceTimeout != 5 {
		t.Errorf("SilenceTimeout = %d, want 5", dev.SilenceTimeout)
	}

	if len(cfg.Displays) != 1 || len(cfg.Displays[0].Segments) != 2 {
		t.Fatalf("displays not parsed: %+v", cfg.Displays)
	}
	if !cfg.Displays[0].Segments[1].Flip {
		t.Error("second segment should be flipped")
	}
}

func TestLoad_SampleConfig(t *testing.T) {
	t.Setenv("LEDFX_DATABASE_PATH", "")
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].Config.PixelCount != 120 {
		t.Errorf("Devices = %+v, want the desk strip", cfg.Devices)
	}
	if len(cfg.Displays) != 1 || len(cfg.Displays[0].Segments) != 2 || !cfg.Displays[0].Segments[1].Flip {
		t.Errorf("Displays = %+v, want desk with a flipped second segment", cfg.Displays)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
devices:
  - id: "broken"
    type: "qudp"
    config:
      name: "Broken"
      ip_address: "10.0.0.2"
      port: 7777
      pixel_count: 0
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for pixel_count 0, got nil")
	}
	if !strings.Contains(err.Error(), "pixel_count") {
		t.Errorf("error %q does not mention pixel_count", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	validDevice := DeviceEntry{
		ID:   "strip",
		Type: DeviceTypeQUDP,
		Config: DeviceConfig{
			Name:        "Strip",
			PixelCount:  10,
			RefreshRate: 60,
			IPAddress:   "10.0.0.5",
			Port:        7777,
		},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "duplicate device id",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, validDevice)
			},
			wantErr: true,
		},
		{
			name: "unknown device type",
			mutate: func(c *Config) {
				c.Devices[0].Type = "serial"
			},
			wantErr: true,
		},
		{
			name: "strip index out of range",
			mutate: func(c *Config) {
				c.Devices[0].Config.StripIndex = 8
			},
			wantErr: true,
		},
		{
			name: "port out of range",
			mutate: func(c *Config) {
				c.Devices[0].Config.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "negative silence timeout",
			mutate: func(c *Config) {
				c.Devices[0].Config.SilenceTimeout = -1
			},
			wantErr: true,
		},
		{
			name: "inverted segment range",
			mutate: func(c *Config) {
				c.Displays = []DisplayEntry{{
					ID:       "d",
					Segments: []SegmentEntry{{Device: "strip", Start: 5, End: 2}},
				}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Devices = []DeviceEntry{validDevice}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeviceConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		deviceType string
		wantPort   int
	}{
		{DeviceTypeDDP, DefaultDDPPort},
		{DeviceTypeWLED, DefaultDDPPort},
		{DeviceTypeUDP, DefaultUDPPort},
		{DeviceTypeQUDP, 0},
	}

	for _, tt := range tests {
		t.Run(tt.deviceType, func(t *testing.T) {
			got := DeviceConfig{}.WithDefaults(tt.deviceType)
			if got.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", got.Port, tt.wantPort)
			}
			if got.RefreshRate != DefaultRefreshRate {
				t.Errorf("RefreshRate = %d, want %d", got.RefreshRate, DefaultRefreshRate)
			}
		})
	}

	explicit := DeviceConfig{Port: 9999, RefreshRate: 30}.WithDefaults(DeviceTypeDDP)
	if explicit.Port != 9999 || explicit.RefreshRate != 30 {
		t.Errorf("WithDefaults overwrote explicit values: %+v", explicit)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("LEDFX_DATABASE_PATH", "/custom/path.db")
	t.Setenv("LEDFX_MQTT_HOST", "mqtt.example.com")
	t.Setenv("LEDFX_MQTT_USERNAME", "testuser")
	t.Setenv("LEDFX_MQTT_PASSWORD", "testpass")
	t.Setenv("LEDFX_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("LEDFX_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Discovery.ScanDuration != 30*time.Second {
		t.Errorf("defaultConfig Discovery.ScanDuration = %v, want 30s", cfg.Discovery.ScanDuration)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}
}
