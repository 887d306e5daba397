package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"eloquence-server-go/internal/domain/agent"
	"eloquence-server-go/internal/domain/feedback"
	"eloquence-server-go/internal/domain/llm"
	"eloquence-server-go/internal/domain/scenario"
	"eloquence-server-go/internal/domain/session"
	"eloquence-server-go/internal/platform/config"
	"eloquence-server-go/internal/platform/errors"
	"eloquence-server-go/internal/platform/logging"
	"eloquence-server-go/internal/platform/storage"
)

// Server is the HTTP control plane: session lifecycle, scenario
// catalog, feedback reports and monitoring.
type Server struct {
	cfg      *config.Config
	registry *session.Registry
	scEngine *scenario.Engine
	scStore  *scenario.Store
	agents   *agent.Store
	redis    *redis.Client
	llm      *llm.Client
	store    *storage.Store
	issuer   *TokenIssuer
	guard    *guard
	logger   *logging.Logger

	httpSrv *http.Server
}

// Deps bundles what the control plane needs.
type Deps struct {
	Config   *config.Config
	Registry *session.Registry
	Engine   *scenario.Engine
	Store    *scenario.Store
	Agents   *agent.Store
	Redis    *redis.Client
	LLM      *llm.Client
	Storage  *storage.Store
	Logger   *logging.Logger
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:      d.Config,
		registry: d.Registry,
		scEngine: d.Engine,
		scStore:  d.Store,
		agents:   d.Agents,
		redis:    d.Redis,
		llm:      d.LLM,
		store:    d.Storage,
		issuer:   NewTokenIssuer(d.Config.Security.APIKey, d.Config.Security.TokenTTL),
		guard:    newGuard(d.Config.Security, d.Logger),
		logger:   d.Logger,
	}
}

// TokenIssuer exposes the issuer so the websocket transport can verify
// session tokens on upgrade.
func (s *Server) TokenIssuer() *TokenIssuer {
	return s.issuer
}

// Engine builds the gin engine with all routes registered.
func (s *Server) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.Security.AllowedOrigins) == 1 && s.cfg.Security.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.Security.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-API-Key")
	engine.Use(cors.New(corsCfg))
	engine.Use(s.guard.RateLimit())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1", s.guard.RequireAPIKey())
	{
		api.POST("/sessions", s.createSession)
		api.DELETE("/sessions/:id", s.deleteSession)
		api.GET("/sessions/:id/feedback", s.sessionFeedback)
		api.GET("/scenarios", s.listScenarios)
		api.POST("/scenarios", s.createScenario)
		api.POST("/exercises", s.generateExercise)
		api.GET("/monitoring", s.monitoring)
	}
	return engine
}

// Start serves the control plane until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Server.IP, s.cfg.Server.Port),
		Handler: s.Engine(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}()

	if s.logger != nil {
		s.logger.InfoTag("HTTP", "control plane listening on %s", s.httpSrv.Addr)
	}
	err := s.httpSrv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type createSessionRequest struct {
	UserID         string `json:"user_id"`
	Language       string `json:"language"`
	ScenarioID     string `json:"scenario_id"`
	Goal           string `json:"goal"`
	AgentProfileID string `json:"agent_profile_id"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	profile := s.agents.Default()
	if req.AgentProfileID != "" {
		var err error
		if profile, err = s.agents.Get(req.AgentProfileID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown agent %q", req.AgentProfileID)})
			return
		}
	}

	var scState *scenario.State
	if req.ScenarioID != "" {
		var err error
		if scState, err = s.scEngine.NewState(req.ScenarioID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown scenario %q", req.ScenarioID)})
			return
		}
	}

	sess := s.registry.Create(profile, scState)
	sess.UserID = req.UserID
	sess.Language = req.Language
	sess.Goal = req.Goal
	if s.store != nil {
		scenarioID := ""
		if scState != nil {
			scenarioID = scState.ScenarioID
		}
		if err := s.store.CreateSession(sess.ID, profile.ID, scenarioID); err != nil && s.logger != nil {
			s.logger.WarnTag("HTTP", "session persistence failed: %v", err)
		}
	}

	token, err := s.issuer.Mint(sess.ID)
	if err != nil {
		s.registry.Delete(sess.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"token":      token,
		"ws_path":    fmt.Sprintf("/ws?session_id=%s", sess.ID),
	})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	deleted := s.registry.Delete(id, nil)
	if deleted && s.store != nil {
		if err := s.store.EndSession(id); err != nil && s.logger != nil {
			s.logger.WarnTag("HTTP", "session close persistence failed: %v", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) sessionFeedback(c *gin.Context) {
	id := c.Param("id")
	report, err := feedback.BuildReport(c.Request.Context(), s.redis, id)
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no feedback for session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feedback aggregation failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) listScenarios(c *gin.Context) {
	type summary struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Language    string `json:"language"`
		StepCount   int    `json:"step_count"`
	}
	scenarios := s.scStore.List()
	out := make([]summary, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, summary{
			ID:          sc.ID,
			Name:        sc.Name,
			Description: sc.Description,
			Language:    sc.Language,
			StepCount:   len(sc.Steps),
		})
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": out})
}

func (s *Server) createScenario(c *gin.Context) {
	var sc scenario.Scenario
	if err := c.ShouldBindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed scenario"})
		return
	}
	if err := s.scStore.Add(&sc); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": sc.ID})
}

// generateExercise produces a standalone exercise text to read aloud.
func (s *Server) generateExercise(c *gin.Context) {
	if s.llm == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "exercise generation disabled"})
		return
	}

	var in llm.ExerciseInput
	if err := c.ShouldBindJSON(&in); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	text, err := s.llm.Complete(c.Request.Context(), llm.ExerciseMessages(&in))
	if err != nil {
		if s.logger != nil {
			s.logger.WarnTag("HTTP", "exercise generation failed: %v", err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "exercise generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":       in.Type,
		"topic":      in.Topic,
		"difficulty": in.Difficulty,
		"text":       text,
	})
}
