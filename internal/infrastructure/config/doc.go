// Package config handles loading and validating LedFx Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling, including per-device-type defaults
//
// The devices and displays sections are the persisted form of the device
// and display registries. Devices added at runtime (for example through
// network discovery) are stored in SQLite instead and merged on startup.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Devices {
//	    fmt.Println(d.ID, d.Type, d.Config.PixelCount)
//	}
package config
