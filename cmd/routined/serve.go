package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	_ "github.com/nerrad567/gray-logic-routines/migrations"

	"github.com/nerrad567/gray-logic-routines/internal/activity"
	"github.com/nerrad567/gray-logic-routines/internal/api"
	"github.com/nerrad567/gray-logic-routines/internal/deviceapi"
	"github.com/nerrad567/gray-logic-routines/internal/dispatch"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-routines/internal/routine"
	"github.com/nerrad567/gray-logic-routines/internal/scheduler"
	"github.com/nerrad567/gray-logic-routines/internal/settings"
	"github.com/nerrad567/gray-logic-routines/internal/source"
	"github.com/nerrad567/gray-logic-routines/internal/vault"
)

// stack is the file-backed core shared by serve and the CLI commands.
type stack struct {
	cfg        *config.Config
	log        *logging.Logger
	routines   *routine.Registry
	settings   *settings.Store
	sources    *source.Store
	dispatcher *dispatch.Dispatcher
}

// buildStack loads routines, settings and sources and wires the dispatcher.
//
// Parameters:
//   - ctx: Context for loading
//   - cfg: Application configuration
//   - log: Logger instance
//
// Returns:
//   - *stack: Loaded stores and dispatcher
//   - error: If any store cannot be loaded
func buildStack(ctx context.Context, cfg *config.Config, log *logging.Logger) (*stack, error) {
	routines := routine.NewRegistry(cfg.Data.RoutinesFile)
	routines.SetLogger(log)
	if err := routines.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading routines: %w", err)
	}

	store := settings.NewStore(cfg.Data.SettingsFile, cfg.Scheduler.CheckIntervalMS)
	store.SetLogger(log)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	v, created, err := vault.OpenFile(cfg.Data.VaultKeyFile)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	if created {
		log.Warn("generated new vault key; back it up, stored tokens are unreadable without it",
			"path", cfg.Data.VaultKeyFile)
	}

	sources := source.NewStore(cfg.Data.SourcesFile, cfg.Devices.SourceKind, v)
	sources.SetLogger(log)

	remote, err := deviceapi.NewClient(deviceapi.Config{
		BaseURL:   cfg.Devices.BaseURL,
		Timeout:   cfg.GetRequestTimeout(),
		RateLimit: cfg.Devices.RateLimit,
		RateBurst: cfg.Devices.RateBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating device api client: %w", err)
	}

	dispatcher := dispatch.New(sources, remote, cfg.Devices.FallbackToken)
	dispatcher.SetLogger(log)

	return &stack{
		cfg:        cfg,
		log:        log,
		routines:   routines,
		settings:   store,
		sources:    sources,
		dispatcher: dispatcher,
	}, nil
}

// newScheduler builds a scheduler over the stack. sink may be nil.
func (st *stack) newScheduler(sink activity.Sink) *scheduler.Scheduler {
	sched := scheduler.New(st.routines, st.dispatcher, sink, st.settings, scheduler.Options{
		Location:          st.cfg.Location(),
		MaxConcurrentRuns: st.cfg.Scheduler.MaxConcurrentRuns,
		ActionTimeout:     st.cfg.GetActionTimeout(),
	})
	sched.SetLogger(st.log)
	return sched
}

// openActivity opens the activity database and applies migrations.
func openActivity(ctx context.Context, cfg *config.Config) (*database.DB, *activity.SQLiteRepository, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // best effort on error path
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, activity.NewSQLiteRepository(db.DB), nil
}

// serve runs the scheduler and HTTP API until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Global flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func serve(ctx context.Context, opts *RootOptions) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic routines",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath(opts.ConfigPath)
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, repo, err := openActivity(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("activity log ready", "path", cfg.Database.Path)

	st, err := buildStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("routines loaded",
		"routines", len(st.routines.List(ctx)),
		"check_interval_ms", st.settings.IntervalMS(),
	)

	sched := st.newScheduler(repo)

	// Connect to MQTT broker (optional)
	var (
		mqttClient *mqtt.Client
		mqttRuns   sync.WaitGroup
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
			// No new run requests arrive after Close; drain the ones in
			// flight before the database defer runs.
			mqttRuns.Wait()
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		sched.AddObserver(&mqttObserver{client: mqttClient, log: log})
		if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllRoutineRuns(), byte(cfg.MQTT.QoS),
			runRequestHandler(ctx, sched, &mqttRuns, log)); subErr != nil {
			return fmt.Errorf("subscribing to run requests: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		sched.AddObserver(&influxObserver{client: influxClient})
	} else {
		log.Info("InfluxDB disabled")
	}

	// HTTP API
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Routines: st.routines,
		Runner:   sched,
		Sources:  st.sources,
		Devices:  st.dispatcher,
		Activity: repo,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	sched.AddObserver(apiServer.Hub())

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Pick up interval edits made outside this process (routined interval set)
	go func() {
		if watchErr := st.settings.Watch(ctx, sched.ApplyInterval); watchErr != nil {
			log.Warn("settings watcher stopped", "error", watchErr)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer func() {
		log.Info("stopping scheduler")
		sched.Stop()
		sched.Wait()
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// scheduler, API server, InfluxDB, MQTT (then its run requests), database

	log.Info("Gray Logic routines stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// cliLogger logs to stderr so command output on stdout stays clean.
func cliLogger(cfg *config.Config) *logging.Logger {
	return logging.NewWithWriter(cfg.Logging, version, os.Stderr)
}
