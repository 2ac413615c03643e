package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vaxburden-server/internal/domain"
	"github.com/vaxburden-server/internal/middleware"
	"github.com/vaxburden-server/internal/service"
)

// Server exposes the burden engine over HTTP
type Server struct {
	config *domain.Config
	logger *logrus.Logger
	tables domain.TableSource
	store  domain.ResultStore
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config *domain.Config, logger *logrus.Logger, tables domain.TableSource, store domain.ResultStore) *Server {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RateLimit(config.Server.RateLimit, config.Server.RateBurst))

	s := &Server{
		config: config,
		logger: logger,
		tables: tables,
		store:  store,
		router: router,
	}
	s.setupRoutes()
	return s
}

// Start starts the HTTP server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/simulate", s.handleSimulate)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// SimulateRequest is the body of POST /api/v1/simulate. Engine defaults
// from configuration apply wherever a field is omitted.
type SimulateRequest struct {
	Countries []string `json:"countries" binding:"required,min=1"`

	Efficacy         domain.Bounded `json:"efficacy" binding:"required"`
	DisabilityWeight domain.Bounded `json:"disability_weight" binding:"required"`
	TreatmentEffect  domain.Bounded `json:"treatment_effect" binding:"required"`
	VaccineUnitCost  float64        `json:"vaccine_unit_cost"`
	ImmunityDuration *float64       `json:"immunity_duration,omitempty"`
	ProgramLength    *int           `json:"program_length,omitempty"`
	BuildYears       *int           `json:"build_years,omitempty"`
	Horizon          *int           `json:"horizon,omitempty"`
	DiscountRate     *float64       `json:"discount_rate,omitempty"`
	Waning           *string        `json:"waning,omitempty"`

	Iterations *int   `json:"iterations,omitempty"`
	PSAEnabled *bool  `json:"psa_enabled,omitempty"`
	Seed       *int64 `json:"seed,omitempty"`
}

// handleSimulate runs the engine synchronously for the requested
// countries and persists the results.
func (s *Server) handleSimulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	globals, opts := s.resolveRequest(&req)

	tables := make([]*domain.CountryTables, 0, len(req.Countries))
	skipped := make(map[string]string)
	for _, country := range req.Countries {
		ct, err := s.tables.LoadCountry(c.Request.Context(), country)
		if err != nil {
			s.logger.WithError(err).WithField("country", country).Warn("Failed to load country tables")
			skipped[country] = err.Error()
			continue
		}
		tables = append(tables, ct)
	}

	runner := service.NewRunner(s.logger, globals, opts)
	output, err := runner.Run(c.Request.Context(), globals, tables)
	if err != nil {
		status := http.StatusInternalServerError
		if _, ok := err.(*domain.ConfigError); ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	for country, reason := range skipped {
		output.Skipped[country] = reason
	}

	runIDs := make(map[string]string, len(output.Summaries))
	for country, summary := range output.Summaries {
		run := &domain.RunRecord{
			ID:         uuid.New().String(),
			Country:    country,
			Iterations: opts.Iterations,
			Seed:       opts.BaseSeed,
			PSAEnabled: opts.PSAEnabled,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.store.SaveRun(c.Request.Context(), run, summary.Results); err != nil {
			s.logger.WithError(err).WithField("country", country).Error("Failed to persist run")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist results"})
			return
		}
		runIDs[country] = run.ID
	}

	c.JSON(http.StatusOK, gin.H{
		"run_ids":   runIDs,
		"summaries": output.Summaries,
		"skipped":   output.Skipped,
	})
}

// resolveRequest merges the request with the configured engine defaults.
func (s *Server) resolveRequest(req *SimulateRequest) (domain.GlobalParameters, service.RunnerOptions) {
	sim := s.config.Simulation

	globals := domain.GlobalParameters{
		Efficacy:         req.Efficacy,
		DisabilityWeight: req.DisabilityWeight,
		TreatmentEffect:  req.TreatmentEffect,
		VaccineUnitCost:  req.VaccineUnitCost,
		ImmunityDuration: sim.ImmunityDuration,
		ProgramLength:    sim.ProgramLength,
		BuildYears:       sim.BuildYears,
		DiscountRate:     sim.DiscountRate,
		Horizon:          sim.Horizon,
		Waning:           domain.WaningKind(sim.Waning),
		RampFloor:        sim.RampFloor,
	}
	if req.ImmunityDuration != nil {
		globals.ImmunityDuration = *req.ImmunityDuration
	}
	if req.ProgramLength != nil {
		globals.ProgramLength = *req.ProgramLength
	}
	if req.BuildYears != nil {
		globals.BuildYears = *req.BuildYears
	}
	if req.Horizon != nil {
		globals.Horizon = *req.Horizon
	}
	if req.DiscountRate != nil {
		globals.DiscountRate = *req.DiscountRate
	}
	if req.Waning != nil {
		globals.Waning = domain.WaningKind(*req.Waning)
	}

	opts := service.RunnerOptions{
		Iterations: sim.Iterations,
		PSAEnabled: sim.PSAEnabled,
		BaseSeed:   sim.Seed,
		Workers:    sim.Workers,
	}
	if req.Iterations != nil {
		opts.Iterations = *req.Iterations
	}
	if req.PSAEnabled != nil {
		opts.PSAEnabled = *req.PSAEnabled
	}
	if req.Seed != nil {
		opts.BaseSeed = *req.Seed
	}
	return globals, opts
}

// handleListRuns handles run listing with pagination
func (s *Server) handleListRuns(c *gin.Context) {
	limit := 50
	offset := 0
	if v, err := parseQueryInt(c, "limit"); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := parseQueryInt(c, "offset"); err == nil && v >= 0 {
		offset = v
	}

	runs, err := s.store.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// handleGetRun returns one run with its quintile results
func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")
	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get run")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	results, err := s.store.GetRunResults(c.Request.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get run results")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run results"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "results": results})
}

func parseQueryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, fmt.Errorf("missing")
	}
	var out int
	_, err := fmt.Sscanf(v, "%d", &out)
	return out, err
}
