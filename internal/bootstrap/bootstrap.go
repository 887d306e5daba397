// Package bootstrap assembles the server from its parts: configuration,
// logging, Redis, the scenario and agent catalogs, the session registry,
// the conversation orchestrator and both transports.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"eloquence-server-go/internal/app/services"
	"eloquence-server-go/internal/domain/agent"
	"eloquence-server-go/internal/domain/feedback"
	"eloquence-server-go/internal/domain/llm"
	"eloquence-server-go/internal/domain/scenario"
	"eloquence-server-go/internal/domain/session"
	"eloquence-server-go/internal/domain/tts"
	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/logging"
	"eloquence-server-go/internal/platform/storage"
	transporthttp "eloquence-server-go/internal/transport/http"
	"eloquence-server-go/internal/transport/ws"
)

const sweepInterval = 30 * time.Second

// App holds every long-lived component of the server.
type App struct {
	cfg      *config.Config
	logger   *logging.Logger
	redis    *redis.Client
	db       *storage.Store
	registry *session.Registry
	sink     *feedback.Sink
	pipeline *tts.Pipeline
	httpSrv  *transporthttp.Server
	wsSrv    *ws.Server
}

// New loads the configuration and wires every component. Nothing is
// listening yet when New returns.
func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.WarnTag("Redis", "not reachable at %s, cache and feedback lists degraded: %v", cfg.Redis.Addr, err)
	}
	cancel()

	db, err := storage.Open(cfg.Storage.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	scStore, err := scenario.LoadStore(cfg.Storage.ScenarioDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}
	agents, err := agent.LoadStore(cfg.Storage.AgentDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}

	registry := session.NewRegistry(logger, nil)
	sink := feedback.NewSink(redisClient, cfg.Storage, cfg.TTS.SampleRate, logger)

	// Session teardown events release the sink dedupe state and close
	// the persisted record, whichever path removed the session.
	bus := registry.Bus()
	_ = bus.Subscribe(session.TopicClosed, func(id string) {
		sink.Forget(id)
		if err := db.EndSession(id); err != nil {
			logger.DebugTag("Storage", "close of session %s not persisted: %v", id, err)
		}
	})
	_ = bus.Subscribe(session.TopicExpired, func(id string) {
		sink.Forget(id)
		if err := db.EndSession(id); err != nil {
			logger.DebugTag("Storage", "expiry of session %s not persisted: %v", id, err)
		}
	})

	scEngine := scenario.NewEngine(scStore)
	pipeline := tts.NewPipeline(tts.NewClient(cfg.TTS), tts.NewCache(redisClient, cfg.TTS, logger), cfg.TTS, logger)

	httpSrv := transporthttp.NewServer(transporthttp.Deps{
		Config:   cfg,
		Registry: registry,
		Engine:   scEngine,
		Store:    scStore,
		Agents:   agents,
		Redis:    redisClient,
		LLM:      llm.NewClient(cfg.LLM, logger),
		Storage:  db,
		Logger:   logger,
	})

	orch := services.NewOrchestrator(services.OrchestratorDeps{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Issuer:   httpSrv.TokenIssuer(),
		Engine:   scEngine,
		Sink:     sink,
		Store:    db,
		TTS:      pipeline,
	})

	hub := ws.NewHub(logger)
	router := ws.NewRouter(hub, logger, ws.RouterOptions{AllowedOrigins: cfg.Security.AllowedOrigins})
	wsSrv := ws.NewServer(ws.ServerConfig{
		Addr:             fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.WSPort),
		HandshakeTimeout: 10 * time.Second,
	}, router, hub, logger)
	wsSrv.SetHandlerBuilder(orch.HandlerBuilder())

	return &App{
		cfg:      cfg,
		logger:   logger,
		redis:    redisClient,
		db:       db,
		registry: registry,
		sink:     sink,
		pipeline: pipeline,
		httpSrv:  httpSrv,
		wsSrv:    wsSrv,
	}, nil
}

// Run starts both transports and the idle sweeper, then blocks until ctx
// is cancelled or a listener fails. Shutdown is performed before Run
// returns.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.httpSrv.Start(ctx)
	})
	g.Go(func() error {
		return a.wsSrv.Start(ctx)
	})
	g.Go(func() error {
		a.registry.Sweep(ctx, a.cfg.Session.IdleTimeout, sweepInterval)
		return nil
	})

	if a.cfg.TTS.PreloadPhrases {
		g.Go(func() error {
			a.pipeline.Prewarm(ctx, "fr", llm.CommonPhrases())
			return nil
		})
	}

	a.logger.InfoTag("Server", "eloquence server running, http=%d ws=%d", a.cfg.Server.Port, a.cfg.Server.WSPort)

	err := g.Wait()
	a.close()
	return err
}

func (a *App) close() {
	a.registry.CloseAll(ws.ErrSessionShutdown)
	_ = a.wsSrv.Stop()
	a.sink.Stop()
	_ = a.redis.Close()
	a.logger.InfoTag("Server", "shutdown complete")
	a.logger.Close()
}
