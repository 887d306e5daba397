package services

import (
	"fmt"
	"net/http"
	"time"

	"eloquence-server-go/internal/core/pool"
	"eloquence-server-go/internal/domain/asr"
	"eloquence-server-go/internal/domain/feedback"
	"eloquence-server-go/internal/domain/llm"
	"eloquence-server-go/internal/domain/scenario"
	"eloquence-server-go/internal/domain/session"
	"eloquence-server-go/internal/domain/tts"
	"eloquence-server-go/internal/domain/vad"
	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/logging"
	"eloquence-server-go/internal/platform/storage"
	transporthttp "eloquence-server-go/internal/transport/http"
	"eloquence-server-go/internal/transport/ws"
)

// Orchestrator wires the conversation pipeline to websocket sessions.
// One connection handler is created per upgraded connection; heavyweight
// clients are shared and slot-limited through pools.
type Orchestrator struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *session.Registry
	issuer   *transporthttp.TokenIssuer

	asrPool *pool.Pool[*asr.Client]
	llmPool *pool.Pool[*llm.Client]
	ttsPool *pool.Pool[*tts.Pipeline]

	scEngine *scenario.Engine
	sink     *feedback.Sink
	store    *storage.Store
}

// OrchestratorDeps bundles the orchestrator dependencies.
type OrchestratorDeps struct {
	Config   *config.Config
	Logger   *logging.Logger
	Registry *session.Registry
	Issuer   *transporthttp.TokenIssuer
	Engine   *scenario.Engine
	Sink     *feedback.Sink
	Store    *storage.Store
	TTS      *tts.Pipeline
}

// NewOrchestrator builds the orchestrator and its provider pools.
func NewOrchestrator(d OrchestratorDeps) *Orchestrator {
	cfg := d.Config
	sampleRate := cfg.TTS.SampleRate

	return &Orchestrator{
		cfg:      cfg,
		logger:   d.Logger,
		registry: d.Registry,
		issuer:   d.Issuer,
		scEngine: d.Engine,
		sink:     d.Sink,
		store:    d.Store,
		asrPool: pool.New(cfg.Pool.MaxPerService, cfg.Pool.AcquireWait, func() (*asr.Client, error) {
			return asr.NewClient(cfg.ASR, sampleRate, d.Logger), nil
		}),
		llmPool: pool.New(cfg.Pool.MaxPerService, cfg.Pool.AcquireWait, func() (*llm.Client, error) {
			return llm.NewClient(cfg.LLM, d.Logger), nil
		}),
		ttsPool: pool.New(cfg.Pool.MaxPerService, cfg.Pool.AcquireWait, func() (*tts.Pipeline, error) {
			return d.TTS, nil
		}),
	}
}

// HandlerBuilder authenticates the upgrade request, binds the session
// and returns its connection handler.
func (o *Orchestrator) HandlerBuilder() ws.HandlerBuilder {
	return func(conn *ws.Connection, req *http.Request) (ws.SessionHandler, error) {
		query := req.URL.Query()
		sessionID := query.Get("session_id")
		token := query.Get("token")

		sid, err := o.issuer.Verify(token)
		if err != nil {
			return nil, fmt.Errorf("websocket auth: %w", err)
		}
		if sessionID == "" {
			sessionID = sid
		}
		if sid != sessionID {
			return nil, fmt.Errorf("token does not authorize session %s", sessionID)
		}

		sess, ok := o.registry.Get(sessionID)
		if !ok {
			return nil, fmt.Errorf("unknown session %s", sessionID)
		}
		if !sess.Bind() {
			return nil, fmt.Errorf("session %s already bound", sessionID)
		}

		return newConnHandler(o, sess, conn), nil
	}
}

// vadDetector builds the frame scorer for one connection: the model
// service when configured, energy scoring otherwise. Detectors hold
// per-connection degradation state and are never shared; onDegrade
// surfaces model failures to the owning session.
func (o *Orchestrator) vadDetector(onDegrade func(error)) vad.Detector {
	if o.cfg.VAD.ModelURL == "" {
		return nil
	}
	return vad.NewFallbackDetector(vad.NewSileroDetector(o.cfg.VAD.ModelURL), o.logger, onDegrade)
}

// heartbeat cadence and the inbound audio backlog bound.
const (
	heartbeatEvery   = 30 * time.Second
	inboundBacklogMS = 2000
)
