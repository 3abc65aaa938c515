package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"probikes/internal/blob"
	"probikes/internal/config"
	"probikes/internal/core"
	rediscache "probikes/internal/infra/cache/redis"
	"probikes/internal/infra/persistence/snapshot"
	"probikes/internal/logging"
	"probikes/internal/notify"
)

// app holds the wired process components.
type app struct {
	cfg      *config.Config
	log      logging.Logger
	registry *prometheus.Registry
	objects  blob.Store
	store    *snapshot.Store
	svc      *core.Service
	notifier *notify.Webhook
	cache    *rediscache.Cache
}

type appOptions struct {
	// notify starts the webhook notifier.
	notify bool
}

func blobConfig(c config.BlobConfig) blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Driver),
		FSRoot: c.FSRoot,
		S3: blob.S3Config{
			Region:          c.S3.Region,
			Bucket:          c.S3.Bucket,
			Prefix:          c.S3.Prefix,
			Endpoint:        c.S3.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			PathStyle:       c.S3.PathStyle,
		},
	}
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer, opts appOptions) (a *app, err error) {
	log := logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format)
	a = &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		return a, err
	}

	bcfg := blobConfig(cfg.Blob)
	a.objects, err = blob.Open(ctx, bcfg)
	if err != nil {
		return a, fmt.Errorf("open blob store: %w", err)
	}

	a.store, err = core.OpenPersistentStore(ctx, core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
		Objects:     a.objects,
		Blob:        bcfg,
		DocumentKey: cfg.Storage.DocumentKey,
	}, core.NewDefaultRulesEngine(), snapshot.WithLogger(log))
	if err != nil {
		return a, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}

	svcOpts := []core.Option{
		core.WithLogger(log),
		core.WithMetricsRecorder(metrics),
		core.WithBackupStore(a.objects),
	}
	if strings.EqualFold(cfg.Logging.Level, "debug") {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(logOut, 256)))
	}
	if cfg.Redis.Addr != "" {
		a.cache, err = rediscache.Open(ctx, rediscache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL.Std(),
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			log.Warn("view cache disabled", "error", err)
			a.cache, err = nil, nil
		} else {
			svcOpts = append(svcOpts, core.WithViewCache(a.cache))
		}
	}
	if opts.notify && cfg.Webhook.Enabled {
		a.notifier = notify.NewWebhook(notify.Config{
			URL:         cfg.Webhook.URL,
			MaxAttempts: cfg.Webhook.MaxAttempts,
			QueueSize:   cfg.Webhook.QueueSize,
			Timeout:     cfg.Webhook.Timeout.Std(),
		}, notify.WithLogger(log))
		svcOpts = append(svcOpts, core.WithPublisher(a.notifier))
	}
	a.svc = core.NewService(a.store, svcOpts...)
	return a, nil
}

// Close drains the notifier and releases every connection.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close(ctx))
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
