// Command graylogic runs the entity store service: the KNX entity store,
// plug number controls and the REST/WebSocket API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/nerrad567/gray-logic-entities/migrations"

	"github.com/nerrad567/gray-logic-entities/internal/api"
	"github.com/nerrad567/gray-logic-entities/internal/entitystore"
	"github.com/nerrad567/gray-logic-entities/internal/entitystore/schema"
	"github.com/nerrad567/gray-logic-entities/internal/feature"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/mqtt"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath honours GRAYLOGIC_CONFIG.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// service holds everything run starts. Resources are released in reverse
// order of acquisition.
type service struct {
	log     *logging.Logger
	closers []func()

	db     *database.DB
	store  *entitystore.Store
	mqtt   *mqtt.Client
	influx *influxdb.Client // nil when disabled
	api    *api.Server
}

func (s *service) onClose(name string, fn func() error) {
	s.closers = append(s.closers, func() {
		if err := fn(); err != nil {
			s.log.Error("shutdown step failed", "step", name, "error", err)
		}
	})
}

func (s *service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func run(ctx context.Context) error {
	boot := logging.Default()
	boot.Info("starting graylogic entities", "version", version, "commit", commit, "build_date", date)

	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s := &service{log: logging.New(cfg.Logging, version)}
	defer s.close()
	s.log.Info("configuration loaded", "path", path, "site", cfg.Site.ID)

	steps := []struct {
		name string
		fn   func(context.Context, *config.Config) error
	}{
		{"database", s.openDatabase},
		{"entity store", s.openStore},
		{"mqtt", s.connectMQTT},
		{"influxdb", s.connectInflux},
		{"api", s.startAPI},
		{"plugs", s.startPlugs},
	}
	for _, step := range steps {
		if err := step.fn(ctx, cfg); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	if err := s.healthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	s.log.Info("initialisation complete")

	<-ctx.Done()
	s.log.Info("shutdown signal received")
	return nil
}

func (s *service) openDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(database.ConfigFrom(cfg.Database))
	if err != nil {
		return err
	}
	s.db = db
	s.onClose("database", db.Close)

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	s.log.Info("database ready", "path", db.Path())
	return nil
}

func (s *service) openStore(ctx context.Context, cfg *config.Config) error {
	store, err := openEntityStore(ctx, s.db, cfg.EntityStore, s.log.Component("entitystore"))
	if err != nil {
		return err
	}
	s.store = store
	s.log.Info("entity store loaded", "entities", store.Count())
	return nil
}

func (s *service) connectMQTT(_ context.Context, cfg *config.Config) error {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return err
	}
	s.mqtt = client
	s.onClose("mqtt", client.Close)

	log := s.log.Component("mqtt")
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("reconnected") })
	client.SetOnDisconnect(func(err error) { log.Warn("connection lost", "error", err) })
	log.Info("connected",
		"broker", net.JoinHostPort(cfg.MQTT.Broker.Host, strconv.Itoa(cfg.MQTT.Broker.Port)),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return nil
}

func (s *service) connectInflux(_ context.Context, cfg *config.Config) error {
	if !cfg.InfluxDB.Enabled {
		s.log.Info("influxdb disabled")
		return nil
	}
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return err
	}
	s.influx = client
	s.onClose("influxdb", client.Close)

	log := s.log.Component("influxdb")
	client.SetOnError(func(err error) { log.Error("write failed", "error", err) })
	log.Info("connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	return nil
}

func (s *service) startAPI(ctx context.Context, cfg *config.Config) error {
	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   s.log.Component("api"),
		Store:    s.store,
		Numbers:  feature.NewNumbers(),
		MQTT:     s.mqtt,
		DB:       s.db.DB,
		Version:  version,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	s.api = srv
	s.onClose("api", srv.Close)

	s.store.SetOnChange(publishEntityChanges(srv, s.mqtt, s.log))
	return nil
}

func (s *service) startPlugs(ctx context.Context, cfg *config.Config) error {
	if !cfg.Plugs.Enabled {
		s.log.Info("plugs disabled")
		return nil
	}
	rt, err := startPlugs(ctx, cfg.Plugs, s.mqtt, s.influx, s.api.Numbers(),
		publishNumberStates(s.api, s.mqtt, s.log), s.log.Component("plugs"))
	if err != nil {
		return err
	}
	s.onClose("plugs", func() error { rt.Stop(); return nil })
	return nil
}

// openEntityStore loads the store cache and imports cfg.SeedFile into an
// empty store.
func openEntityStore(ctx context.Context, db *database.DB, cfg config.EntityStoreConfig, log *logging.Logger) (*entitystore.Store, error) {
	store := entitystore.NewStore(entitystore.NewSQLiteRepository(db.DB), schema.Default())
	store.SetLogger(log)

	if err := store.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading entity store: %w", err)
	}
	if cfg.SeedFile == "" {
		return store, nil
	}

	f, err := os.Open(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("opening entity seed file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	if _, err := store.Seed(ctx, f); err != nil {
		return nil, fmt.Errorf("seeding from %s: %w", cfg.SeedFile, err)
	}
	return store, nil
}

// publishEntityChanges fans store changes out to WebSocket subscribers and
// the non-retained entity store MQTT topic.
func publishEntityChanges(srv *api.Server, client *mqtt.Client, log *logging.Logger) func(entitystore.Change) {
	topic := mqtt.Topics{}.CoreEntityStore()
	return func(c entitystore.Change) {
		srv.BroadcastEntityChange(c)
		if err := client.PublishJSON(topic, c, false); err != nil {
			log.Warn("publishing entity change failed", "unique_id", c.Entry.UniqueID, "error", err)
		}
	}
}

// publishNumberStates fans number state out to WebSocket subscribers and
// a retained per-number MQTT topic.
func publishNumberStates(srv *api.Server, client *mqtt.Client, log *logging.Logger) func(feature.NumberState) {
	return func(st feature.NumberState) {
		srv.BroadcastNumberState(st)
		if err := client.PublishJSON(mqtt.Topics{}.CoreNumberState(st.UniqueID), st, true); err != nil {
			log.Debug("publishing number state failed", "unique_id", st.UniqueID, "error", err)
		}
	}
}

func (s *service) healthCheck(ctx context.Context) error {
	type check struct {
		name string
		fn   func(context.Context) error
	}
	checks := []check{
		{"database", s.db.HealthCheck},
		{"mqtt", s.mqtt.HealthCheck},
		{"api", s.api.HealthCheck},
	}
	if s.influx != nil {
		checks = append(checks, check{"influxdb", s.influx.HealthCheck})
	}

	var errs []error
	for _, c := range checks {
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
