package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/auth"
	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/cloud"
	"github.com/cloudwright/cloudwright/internal/config"
	"github.com/cloudwright/cloudwright/internal/engine"
	"github.com/cloudwright/cloudwright/internal/extract"
	"github.com/cloudwright/cloudwright/internal/failover"
	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/metrics"
	"github.com/cloudwright/cloudwright/internal/notify"
	"github.com/cloudwright/cloudwright/internal/opsserver"
	"github.com/cloudwright/cloudwright/internal/pipeline"
	"github.com/cloudwright/cloudwright/internal/provider"
	"github.com/cloudwright/cloudwright/internal/router"
	"github.com/cloudwright/cloudwright/internal/rulepack"
	"github.com/cloudwright/cloudwright/internal/session/store"
	"github.com/cloudwright/cloudwright/internal/sweeper"
	"github.com/cloudwright/cloudwright/internal/validate"
)

// app holds the wired pipeline and its supporting services for one
// process. buildApp connects everything; Close releases it in reverse.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	catalog  *catalog.Registry
	pipeline *pipeline.Pipeline
	sessions *store.SessionStore
	creds    *auth.Store

	db      *store.DB
	redis   *redis.Client
	ops     *opsserver.Server
	sweeper *sweeper.Sweeper

	confirmTimeout time.Duration
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.New(cfg.Logging)

	if cfg.Models.Primary == "" {
		return nil, fmt.Errorf("models.primary is not configured; set it to a provider/model ref")
	}
	if len(cfg.Models.Providers) == 0 {
		return nil, fmt.Errorf("no model providers configured")
	}

	providers := provider.NewRegistry()
	creds := auth.NewStore(cfg.Auth.StatePath)
	for name, pc := range cfg.Models.Providers {
		models := make([]provider.ModelInfo, 0, len(pc.Models))
		for _, m := range pc.Models {
			models = append(models, provider.ModelInfo{
				ID:            m.ID,
				Name:          m.Name,
				ProviderID:    name,
				ContextWindow: m.ContextWindow,
				MaxTokens:     m.MaxTokens,
			})
		}
		p, err := provider.FromConfig(provider.ProviderConfig{
			ID:      name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			API:     pc.API,
			Timeout: config.Duration(pc.Timeout, 60*time.Second),
			Models:  models,
		})
		if err != nil {
			return nil, err
		}
		if err := providers.Register(p); err != nil {
			return nil, err
		}
		creds.Add(&auth.Profile{ProviderID: name, Key: pc.APIKey})
	}
	if err := creds.Load(); err != nil {
		logger.WithError(err).Warn("could not load credential state, starting fresh")
	}

	fallbacks := make([]provider.ModelRef, 0, len(cfg.Models.Fallbacks))
	for _, f := range cfg.Models.Fallbacks {
		ref, err := provider.ParseModelRef(f)
		if err != nil {
			return nil, err
		}
		fallbacks = append(fallbacks, ref)
	}
	backoff := auth.Backoff{
		Initial:    config.Duration(cfg.Auth.Cooldowns.Initial, time.Minute),
		Max:        config.Duration(cfg.Auth.Cooldowns.Max, time.Hour),
		Multiplier: cfg.Auth.Cooldowns.Multiplier,
	}
	models := failover.NewController(providers, creds, backoff, fallbacks, logger)

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	temperature := 0.0
	if cfg.Models.Temperature != nil {
		temperature = *cfg.Models.Temperature
	}
	extractor := extract.New(pipeline.InstrumentCompleter(models, m), extract.Config{
		Model:       cfg.Models.Primary,
		Temperature: temperature,
		MaxTokens:   cfg.Models.MaxTokens,
	}, logger)

	packsDir := cfg.Rulepacks.Dir
	if packsDir == "" && cfg.Storage.DataDir != "" {
		packsDir = filepath.Join(cfg.Storage.DataDir, "rulepacks")
	}
	var scripts []validate.Script
	if len(cfg.Rulepacks.Packs) > 0 {
		specs := make([]rulepack.Spec, 0, len(cfg.Rulepacks.Packs))
		for _, p := range cfg.Rulepacks.Packs {
			specs = append(specs, rulepack.Spec{Name: p.Name, GitHub: p.GitHub, Ref: p.Ref})
		}
		var err error
		scripts, err = rulepack.Load(ctx, packsDir, specs)
		if err != nil {
			logger.WithError(err).Warn("rulepacks unavailable, running builtin rules only")
			scripts = nil
		}
	}
	validator := validate.New(validate.Config{
		MaxInstanceCount: cfg.Pipeline.MaxInstanceCount,
		Scripts:          scripts,
	}, logger)

	if cfg.Storage.DataDir != "" {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("data dir %s: %w", cfg.Storage.DataDir, err)
		}
	}
	db, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	sessions := store.NewSessionStore(db)

	var cache *redis.Client
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.WithError(err).Warn("redis unreachable, using process-local tokens")
			_ = client.Close()
		} else {
			cache = client
		}
	}
	var tokens engine.TokenSource
	if cache != nil {
		tokens = engine.NewRedisTokensFromClient(cache, config.Duration(cfg.Redis.TokenTTL, 24*time.Hour))
	} else {
		tokens = engine.NewLocalTokens()
	}

	awsCfg, err := cloud.LoadAWSConfig(ctx, cloud.Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
		Endpoint:        cfg.AWS.Endpoint,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	ec2Client := ec2.NewFromConfig(awsCfg)
	s3Client := s3.NewFromConfig(awsCfg)
	images := cloud.NewImageResolver(ec2Client, cache, config.Duration(cfg.AWS.ImageCacheTTL, time.Hour), logger)
	handlers := engine.NewRegistry()
	if err := cloud.RegisterHandlers(handlers, cloud.NewEC2(ec2Client, images, logger), cloud.NewS3(s3Client, cfg.AWS.Region, logger)); err != nil {
		_ = db.Close()
		return nil, err
	}

	eng := engine.New(handlers, tokens, engine.Config{
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		AttemptTimeout: config.Duration(cfg.Pipeline.AttemptTimeout, 60*time.Second),
		OnAttempt:      m.RecordAttempt,
	}, logger)

	a := &app{
		cfg:            cfg,
		log:            logger,
		catalog:        catalog.Default(),
		sessions:       sessions,
		creds:          creds,
		db:             db,
		redis:          cache,
		confirmTimeout: config.Duration(cfg.Pipeline.ConfirmationTimeout, 60*time.Second),
	}

	deps := pipeline.Deps{
		Router:    router.New(),
		Catalog:   a.catalog,
		Extractor: extractor,
		Validator: validator,
		Engine:    eng,
		Store:     sessions,
		Metrics:   m,
	}
	if len(cfg.Notify.Webhooks) > 0 {
		hooks := make([]notify.Hook, 0, len(cfg.Notify.Webhooks))
		for _, w := range cfg.Notify.Webhooks {
			hooks = append(hooks, notify.Hook{Name: w.Name, URL: w.URL, Events: w.Events, Headers: w.Headers})
		}
		deps.Notifier = notify.New(hooks, logger)
	}
	if cfg.Ops.Enabled {
		a.ops = opsserver.New(opsserver.Config{Addr: cfg.Ops.Addr}, promReg, logger)
		deps.Observer = a.ops.Broadcast
	}

	a.pipeline = pipeline.New(deps, pipeline.Config{
		ClarificationCeiling: cfg.Pipeline.ClarificationLimit,
	}, logger)

	a.sweeper = sweeper.New(sessions, sweeper.Config{
		Schedule:            cfg.Sweeper.Schedule,
		ConfirmationTimeout: a.confirmTimeout,
		RetainTerminal:      config.Duration(cfg.Sweeper.RetainTerminal, 7*24*time.Hour),
	}, logger)

	return a, nil
}

// startBackground launches the ops server and the maintenance sweeper.
// Only long-running commands call this; a one-shot run neither binds a
// port nor prunes history.
func (a *app) startBackground() error {
	if a.ops != nil {
		if err := a.ops.Start(); err != nil {
			return err
		}
	}
	return a.sweeper.Start()
}

func (a *app) stopBackground() {
	a.sweeper.Stop()
	if a.ops != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.ops.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("ops server shutdown failed")
		}
	}
}

func (a *app) Close() {
	if err := a.creds.Save(); err != nil {
		a.log.WithError(err).Warn("could not persist credential state")
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("closing session store failed")
	}
}
