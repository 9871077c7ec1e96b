// LedFx Core routes rendered LED frames from logical displays to
// networked addressable-LED controllers.
//
// Devices and displays come from config.yaml plus the SQLite store;
// frames, effects and audio level arrive over MQTT. WLED controllers
// found by mDNS discovery are added and persisted automatically.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledfx/ledfx-core/internal/audio"
	"github.com/ledfx/ledfx-core/internal/bridges/ddp"
	"github.com/ledfx/ledfx-core/internal/bridges/qudp"
	"github.com/ledfx/ledfx-core/internal/bridges/udp"
	"github.com/ledfx/ledfx-core/internal/bridges/wled"
	"github.com/ledfx/ledfx-core/internal/control"
	"github.com/ledfx/ledfx-core/internal/device"
	"github.com/ledfx/ledfx-core/internal/discovery"
	"github.com/ledfx/ledfx-core/internal/display"
	"github.com/ledfx/ledfx-core/internal/infrastructure/config"
	"github.com/ledfx/ledfx-core/internal/infrastructure/database"
	"github.com/ledfx/ledfx-core/internal/infrastructure/influxdb"
	"github.com/ledfx/ledfx-core/internal/infrastructure/logging"
	"github.com/ledfx/ledfx-core/internal/infrastructure/mqtt"
	"github.com/ledfx/ledfx-core/internal/task"
	"github.com/ledfx/ledfx-core/migrations"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath     = "configs/config.yaml"
	defaultReportInterval = 10 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the engine and blocks until ctx is cancelled.
//
// Shutdown order: running discovery scans are cancelled, displays release
// their devices, devices are deactivated and the connection pool closed,
// then MQTT, InfluxDB and the database are closed by the deferred calls.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting LedFx Core", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("LedFx Core stopped")
	}()
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())

	tasks := task.NewSpawner(ctx)
	tasks.SetLogger(log.Component("task"))
	defer tasks.Close()

	level := &audio.Level{}

	// MQTT is connected before devices exist so they can report state
	// from the start.
	var (
		mqttClient *mqtt.Client
		bridge     *control.Bridge
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", mqttClient.ClientID(),
		)

		bridge = control.New(mqttClient, level)
		bridge.SetLogger(log.Component("control"))
	} else {
		log.Info("MQTT disabled")
	}

	pool := qudp.NewPool()
	pool.SetLogger(log.Component("qudp"))

	opts := device.Options{
		Logger:  log.Component("device"),
		Volume:  level,
		Spawner: tasks,
	}
	if bridge != nil {
		opts.Events = bridge
	}
	devices := device.NewRegistry(buildFactories(pool, log), opts)
	devices.SetLogger(log.Component("device"))
	devices.SetRepository(device.NewSQLiteRepository(db.DB))
	devices.SetProber(wled.NewClient(wled.DefaultTimeout))
	devices.OnShutdown(pool.Close)

	displays := display.NewRegistry(devices)
	displays.SetLogger(log.Component("display"))
	displays.SetRepository(display.NewSQLiteRepository(db.DB))
	wireRegistries(ctx, devices, displays, log)

	if err := loadDevices(ctx, cfg, devices); err != nil {
		log.Warn("some devices failed to load", "error", err)
	}
	if err := devices.InitializeDevices(ctx); err != nil {
		log.Warn("some devices could not be resolved", "error", err)
	}
	if err := loadDisplays(ctx, cfg, displays); err != nil {
		log.Warn("some displays failed to load", "error", err)
	}
	log.Info("engine ready", "devices", devices.Count(), "displays", displays.Count())

	tasks.Go("frame ticker", func(ctx context.Context) error {
		displays.Run(ctx)
		return nil
	}, nil)

	scans := task.NewSpawner(ctx)
	scans.SetLogger(log.Component("discovery"))
	defer func() {
		scans.Close()
		displays.Shutdown()
		devices.Shutdown()
		if bridge != nil {
			// Publishes the final device states before MQTT disconnects.
			bridge.Close()
		}
		tasks.Close()
	}()
	scanner := discovery.NewScanner(discovery.NewZeroconfBrowser(cfg.Discovery.Interface), cfg.Discovery)
	scanner.SetLogger(log.Component("discovery"))
	startScan := func() { submitScan(scans, scanner, devices, log) }
	if cfg.Discovery.ScanOnStartup {
		startScan()
	}

	if bridge != nil {
		bridge.OnScan(startScan)
		if err := bridge.Start(mqttClient, displays); err != nil {
			return fmt.Errorf("starting MQTT control: %w", err)
		}
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		interval := time.Duration(cfg.InfluxDB.FlushInterval) * time.Second
		if interval <= 0 {
			interval = defaultReportInterval
		}
		tasks.Go("telemetry reporter", func(ctx context.Context) error {
			influxdb.RunReporter(ctx, influxClient, interval, deviceStats(devices))
			return nil
		}, nil)
	}

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns LEDFX_CONFIG if set, else the default path.
func getConfigPath() string {
	if path := os.Getenv("LEDFX_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildFactories maps every device type to its transport. WLED
// controllers are driven over DDP.
func buildFactories(pool *qudp.Pool, log *logging.Logger) map[string]device.TransportFactory {
	return map[string]device.TransportFactory{
		config.DeviceTypeQUDP: qudp.NewFactory(pool),
		config.DeviceTypeDDP:  ddp.NewFactory(),
		config.DeviceTypeWLED: ddp.NewFactory(),
		config.DeviceTypeUDP:  udp.NewFactory(log.Component("udp")),
	}
}

// wireRegistries keeps displays in step with devices: an added device
// gets a display covering all of it, a removed device takes its
// segments with it, and destroying a device's own display removes the
// device.
func wireRegistries(ctx context.Context, devices *device.Registry, displays *display.Registry, log *logging.Logger) {
	devices.OnDeviceAdded(func(d *device.Device) {
		if _, err := displays.CreateForDevice(ctx, d); err != nil {
			log.Warn("failed to create display for device", "device_id", d.ID(), "error", err)
		}
	})
	devices.OnDeviceRemoved(func(id string) {
		displays.DeviceRemoved(ctx, id)
	})
	displays.OnDestroyDevice(devices.Remove)
}

// loadDevices creates configured devices, then stored ones. A configured
// id wins over a stored one.
func loadDevices(ctx context.Context, cfg *config.Config, devices *device.Registry) error {
	return errors.Join(
		devices.CreateFromConfig(cfg.Devices),
		devices.LoadFromRepository(ctx),
	)
}

// loadDisplays creates configured displays, then stored ones.
func loadDisplays(ctx context.Context, cfg *config.Config, displays *display.Registry) error {
	return errors.Join(
		displays.CreateFromConfig(cfg.Displays),
		displays.LoadFromRepository(ctx),
	)
}

// submitScan runs one discovery scan in the background, handing every
// candidate to the device registry.
func submitScan(scans *task.Spawner, scanner *discovery.Scanner, devices *device.Registry, log *logging.Logger) {
	scans.Go("discovery scan", func(ctx context.Context) error {
		log.Info("discovery scan started")
		return scanner.Scan(ctx, devices.HandleDiscovered)
	}, func(err error) {
		switch {
		case err == nil:
			log.Info("discovery scan finished")
		case errors.Is(err, discovery.ErrScanInProgress):
			log.Debug("discovery scan already running")
		case errors.Is(err, context.Canceled), errors.Is(err, task.ErrClosed):
			log.Debug("discovery scan cancelled")
		default:
			log.Warn("discovery scan failed", "error", err)
		}
	})
}

// deviceStats reads the flush counters of every device.
func deviceStats(devices *device.Registry) influxdb.StatsSource {
	return func() []influxdb.DeviceStats {
		list := devices.List()
		out := make([]influxdb.DeviceStats, 0, len(list))
		for _, d := range list {
			s := d.Stats()
			out = append(out, influxdb.DeviceStats{
				ID:            d.ID(),
				FramesFlushed: s.FramesFlushed,
				FlushErrors:   s.FlushErrors,
				Active:        s.Active,
			})
		}
		return out
	}
}

// healthCheck verifies infrastructure connections. mqttClient may be nil.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}
