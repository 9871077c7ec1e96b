package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Device type tags understood by the device registry.
const (
	DeviceTypeQUDP = "qudp"
	DeviceTypeDDP  = "ddp"
	DeviceTypeUDP  = "udp"
	DeviceTypeWLED = "wled"
)

// Device defaults applied by DeviceConfig.WithDefaults.
const (
	DefaultRefreshRate = 60
	DefaultDDPPort     = 4048
	DefaultUDPPort     = 21324

	// maxStripIndex is the highest strip index a QUDP controller exposes.
	maxStripIndex = 7
)

// Config is the root configuration structure for LedFx Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Devices   []DeviceEntry   `yaml:"devices"`
	Displays  []DisplayEntry  `yaml:"displays"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DiscoveryConfig contains network discovery settings.
type DiscoveryConfig struct {
	// ScanOnStartup starts a WLED scan once devices and displays are loaded.
	ScanOnStartup bool `yaml:"scan_on_startup"`

	// ScanDuration is how long a scan listens for advertisements.
	// Default: 30s
	ScanDuration time.Duration `yaml:"scan_duration"`

	// ServiceType is the mDNS service browsed for.
	// Default: "_wled._tcp"
	ServiceType string `yaml:"service_type"`

	// Interface restricts browsing to one network interface. Empty means all.
	Interface string `yaml:"interface,omitempty"`
}

// DeviceEntry is one persisted device: its id, transport type and settings.
type DeviceEntry struct {
	ID     string       `yaml:"id" json:"id"`
	Type   string       `yaml:"type" json:"type"`
	Config DeviceConfig `yaml:"config" json:"config"`
}

// DeviceConfig holds the settings shared by every device type plus the
// transport-specific fields. Unused transport fields are ignored.
type DeviceConfig struct {
	Name       string `yaml:"name" json:"name"`
	IconName   string `yaml:"icon_name,omitempty" json:"icon_name,omitempty"`
	PixelCount int    `yaml:"pixel_count" json:"pixel_count"`

	// RefreshRate is the maximum rate (Hz) that frames are sent to the device.
	RefreshRate int `yaml:"refresh_rate" json:"refresh_rate"`

	// SilenceTimeout is how many seconds of silence until the device is
	// deactivated. 0 disables the timeout.
	SilenceTimeout int `yaml:"silence_timeout" json:"silence_timeout"`

	// CenterOffset rotates outgoing frames by this many pixels.
	CenterOffset int `yaml:"center_offset" json:"center_offset"`

	IPAddress  string `yaml:"ip_address,omitempty" json:"ip_address,omitempty"`
	Port       int    `yaml:"port,omitempty" json:"port,omitempty"`
	StripIndex int    `yaml:"strip_index,omitempty" json:"strip_index,omitempty"`

	// Generic UDP framing options.
	IncludeIndexes bool   `yaml:"include_indexes,omitempty" json:"include_indexes,omitempty"`
	DataPrefix     string `yaml:"data_prefix,omitempty" json:"data_prefix,omitempty"`
	DataPostfix    string `yaml:"data_postfix,omitempty" json:"data_postfix,omitempty"`
}

// DisplayEntry is one persisted display.
type DisplayEntry struct {
	ID       string         `yaml:"id" json:"id"`
	Config   DisplayConfig  `yaml:"config" json:"config"`
	Segments []SegmentEntry `yaml:"segments" json:"segments"`

	// IsDevice names the device this display was generated for, if any.
	IsDevice string `yaml:"is_device,omitempty" json:"is_device,omitempty"`

	// Effect is applied to the display once it has been created.
	Effect *EffectEntry `yaml:"effect,omitempty" json:"effect,omitempty"`
}

// DisplayConfig holds a display's settings.
type DisplayConfig struct {
	Name     string `yaml:"name" json:"name"`
	IconName string `yaml:"icon_name,omitempty" json:"icon_name,omitempty"`

	// RefreshRate is the rate the display renders at. 0 derives it from
	// the slowest device the display spans.
	RefreshRate int `yaml:"refresh_rate,omitempty" json:"refresh_rate,omitempty"`
}

// SegmentEntry binds an inclusive pixel range of a device to a display.
type SegmentEntry struct {
	Device string `yaml:"device" json:"device"`
	Start  int    `yaml:"start" json:"start"`
	End    int    `yaml:"end" json:"end"`
	Flip   bool   `yaml:"flip,omitempty" json:"flip,omitempty"`
}

// EffectEntry names an effect supplied by an external renderer.
type EffectEntry struct {
	Type string `yaml:"type" json:"type"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LEDFX_SECTION_KEY
// For example: LEDFX_DATABASE_PATH, LEDFX_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	for i := range cfg.Devices {
		cfg.Devices[i].Config = cfg.Devices[i].Config.WithDefaults(cfg.Devices[i].Type)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/ledfx.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ledfx-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Discovery: DiscoveryConfig{
			ScanDuration: 30 * time.Second,
			ServiceType:  "_wled._tcp",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LEDFX_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEDFX_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("LEDFX_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LEDFX_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LEDFX_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("LEDFX_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("LEDFX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// WithDefaults returns a copy of c with unset optional fields filled in
// for the given device type.
func (c DeviceConfig) WithDefaults(deviceType string) DeviceConfig {
	if c.RefreshRate == 0 {
		c.RefreshRate = DefaultRefreshRate
	}
	if c.IconName == "" {
		c.IconName = "mdi:led-strip"
	}
	if c.Port == 0 {
		switch deviceType {
		case DeviceTypeDDP, DeviceTypeWLED:
			c.Port = DefaultDDPPort
		case DeviceTypeUDP:
			c.Port = DefaultUDPPort
		}
	}
	return c
}

// Validate checks a device's settings for the given type and returns
// one message per problem found.
func (c DeviceConfig) Validate(deviceType string) []string {
	var errs []string

	if c.Name == "" {
		errs = append(errs, "name is required")
	}
	if c.PixelCount < 1 {
		errs = append(errs, "pixel_count must be at least 1")
	}
	if c.RefreshRate < 1 {
		errs = append(errs, "refresh_rate must be at least 1")
	}
	if c.SilenceTimeout < 0 {
		errs = append(errs, "silence_timeout must not be negative")
	}

	switch deviceType {
	case DeviceTypeQUDP, DeviceTypeDDP, DeviceTypeUDP, DeviceTypeWLED:
		if c.IPAddress == "" {
			errs = append(errs, "ip_address is required")
		}
		if c.Port < 1 || c.Port > 65535 {
			errs = append(errs, "port must be between 1 and 65535")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown device type %q", deviceType))
	}

	if deviceType == DeviceTypeQUDP && (c.StripIndex < 0 || c.StripIndex > maxStripIndex) {
		errs = append(errs, "strip_index must be between 0 and 7")
	}

	return errs
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Discovery.ScanDuration < 0 {
		errs = append(errs, "discovery.scan_duration must not be negative")
	}

	deviceIDs := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].id is required", i))
			continue
		}
		if deviceIDs[d.ID] {
			errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicated", i, d.ID))
		}
		deviceIDs[d.ID] = true
		for _, msg := range d.Config.Validate(d.Type) {
			errs = append(errs, fmt.Sprintf("devices[%d] (%s): %s", i, d.ID, msg))
		}
	}

	displayIDs := make(map[string]bool, len(c.Displays))
	for i, d := range c.Displays {
		if d.ID == "" {
			errs = append(errs, fmt.Sprintf("displays[%d].id is required", i))
			continue
		}
		if displayIDs[d.ID] {
			errs = append(errs, fmt.Sprintf("displays[%d].id %q is duplicated", i, d.ID))
		}
		displayIDs[d.ID] = true
		if d.Config.RefreshRate < 0 {
			errs = append(errs, fmt.Sprintf("displays[%d] (%s): refresh_rate must not be negative", i, d.ID))
		}
		for j, s := range d.Segments {
			if s.Start < 0 || s.End < s.Start {
				errs = append(errs, fmt.Sprintf("displays[%d] (%s): segments[%d] range %d-%d is invalid", i, d.ID, j, s.Start, s.End))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
