package main

import (
	"context"
	"fmt"
	"io"

	"backoffice/client/es"
	"backoffice/common"
	"backoffice/config"
	"backoffice/domain"
	"backoffice/domain/entity"
	"backoffice/domain/filter"
	"backoffice/domain/workflow"
	"backoffice/event"
	"backoffice/indices"
	"backoffice/indices/search"
	"backoffice/locker"
	"backoffice/persistence"
	"backoffice/servehttp"
	"backoffice/webhook"

	"github.com/opentracing/opentracing-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

func prepare(configFile string) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	common.ConfigureLogger(cfg.Log.Level, cfg.Log.Format,
		logrus.Fields{"service": cfg.Tracing.ServiceName, "environment": cfg.Environment})
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*persistence.DataSourceManager, error) {
	dbConfig := &persistence.DatabaseConfig{DriverType: cfg.Database.Driver, DriverArgs: cfg.Database.Args}
	if dbConfig.DriverType == persistence.DriverMysql {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			return nil, fmt.Errorf("prepare database: %w", err)
		}
	}
	if dbConfig.DriverType == persistence.DriverSqlite {
		dbConfig.MaxOpenConns = 1
	}

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	persistence.ActiveDataSourceManager = ds
	return ds, nil
}

func autoMigrate(ds *persistence.DataSourceManager) error {
	return ds.GormDB(context.Background()).AutoMigrate(
		&domain.WorkflowDefinition{},
		&domain.WorkflowRuntimeData{},
		&domain.EndUser{},
		&domain.Business{},
		&domain.User{},
		&filter.Filter{},
	).Error
}

func newLocker(cfg *config.Config) locker.Locker {
	opts := locker.Options{Wait: cfg.Lock.Wait, TTL: cfg.Lock.TTL}
	if cfg.Redis.Addr == "" {
		return locker.NewLocalLocker(opts)
	}
	logrus.Infof("runtime locks are held in redis %s", cfg.Redis.Addr)
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	return locker.NewRedisLocker(client, opts)
}

// initTracer installs a jaeger tracer configured from JAEGER_* environment variables.
func initTracer(cfg *config.Config) (io.Closer, error) {
	if !cfg.Tracing.Enabled {
		return io.NopCloser(nil), nil
	}
	jc, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, err
	}
	if jc.ServiceName == "" {
		jc.ServiceName = cfg.Tracing.ServiceName
	}
	tracer, closer, err := jc.NewTracer()
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

func newManager(cfg *config.Config, ds *persistence.DataSourceManager, bus *event.Bus) *workflow.RuntimeManager {
	return workflow.NewRuntimeManager(workflow.NewGormRepository(ds), bus, newLocker(cfg), cfg)
}

func serve(configFile string) error {
	cfg, err := prepare(configFile)
	if err != nil {
		return err
	}

	tracerCloser, err := initTracer(cfg)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer tracerCloser.Close()

	ds, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer ds.Stop()
	if err := autoMigrate(ds); err != nil {
		return fmt.Errorf("database migration: %w", err)
	}

	bus := event.NewBus()
	dispatcher, err := webhook.NewDispatcherFromConfig(cfg)
	if err != nil {
		return err
	}
	dispatcher.Register(bus)

	if len(cfg.Elasticsearch.Addresses) > 0 {
		if _, err := es.CreateClient(cfg.Elasticsearch.Addresses); err != nil {
			return fmt.Errorf("elasticsearch client: %w", err)
		}
		if cfg.Elasticsearch.Index != "" {
			indices.RuntimeIndexName = cfg.Elasticsearch.Index
		}
		crontab, err := indices.StartCron(cfg.Elasticsearch.FullSyncCron)
		if err != nil {
			return fmt.Errorf("indices full sync schedule: %w", err)
		}
		defer crontab.Stop()
	} else {
		logrus.Info("elasticsearch is not configured, runtime search is disabled")
	}
	indices.Register(bus)

	manager := newManager(cfg, ds, bus)

	engine := servehttp.NewEngine(cfg.Tracing.ServiceName)
	workflow.RegisterWorkflowsRestAPI(engine, manager)
	filter.RegisterFiltersRestAPI(engine)
	entity.RegisterEntitiesRestAPI(engine)
	indices.RegisterIndicesRestAPI(engine)
	search.RegisterSearchRestAPI(engine)

	logrus.Infof("service start on %s", cfg.Server.Addr)
	return servehttp.StartHTTPServer(cfg.Server.Addr, engine, dispatcher.Shutdown)
}

func migrate(configFile string) error {
	cfg, err := prepare(configFile)
	if err != nil {
		return err
	}
	ds, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer ds.Stop()
	if err := autoMigrate(ds); err != nil {
		return fmt.Errorf("database migration: %w", err)
	}
	logrus.Info("database migrated")
	return nil
}

func seed(configFile string) error {
	cfg, err := prepare(configFile)
	if err != nil {
		return err
	}
	ds, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer ds.Stop()
	if err := autoMigrate(ds); err != nil {
		return fmt.Errorf("database migration: %w", err)
	}

	created, err := newManager(cfg, ds, event.NewBus()).Seed(context.Background())
	if err != nil {
		return fmt.Errorf("seed workflow definitions: %w", err)
	}
	logrus.Infof("%d workflow definitions seeded", created)
	return nil
}
