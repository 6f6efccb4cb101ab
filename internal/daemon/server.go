package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"vmigrate/internal/inventory"
	"vmigrate/internal/logger"
	"vmigrate/internal/model"
	"vmigrate/internal/platform"
	"vmigrate/internal/repository"
	"vmigrate/internal/scheduler"
	"vmigrate/internal/stream"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	echo      *echo.Echo
	scheduler *scheduler.Scheduler
	providers *repository.ProviderRepository
	jobs      *repository.JobRepository
	logs      *repository.LogRepository
	cache     *inventory.Cache
	hub       *stream.Hub
	status    func() any
	port      int
	stopCh    chan struct{}
}

func NewServer(
	sched *scheduler.Scheduler,
	cache *inventory.Cache,
	hub *stream.Hub,
	status func() any,
	port int,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:      e,
		scheduler: sched,
		providers: repository.NewProviderRepository(),
		jobs:      repository.NewJobRepository(),
		logs:      repository.NewLogRepository(),
		cache:     cache,
		hub:       hub,
		status:    status,
		port:      port,
		stopCh:    make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// For the entire daemon
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)

	p := s.echo.Group("/api/providers")
	p.POST("", s.handleAddProvider)
	p.GET("", s.handleListProviders)
	p.DELETE("/:id", s.handleRemoveProvider)
	p.POST("/:id/sync", s.handleSyncProvider)
	p.GET("/:id/inventory", s.handleListInventory)

	j := s.echo.Group("/api/jobs")
	j.POST("/batch", s.handleCreateBatch)
	j.GET("", s.handleListJobs)
	j.GET("/:id", s.handleGetJob)
	j.GET("/:id/logs", s.handleJobLogs)
	j.GET("/:id/stream", s.handleStreamJob)
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"running": s.status(),
	})
}

func (s *Server) handleStop(c echo.Context) error {
	s.stopCh <- struct{}{}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

type addProviderRequest struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	APIURL    string `json:"api_url"`
	Username  string `json:"username"`
	Secret    string `json:"secret"`
	VerifySSL *bool  `json:"verify_ssl"`
}

func (s *Server) handleAddProvider(c echo.Context) error {
	var req addProviderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	provider := model.Provider{
		Name:      req.Name,
		Kind:      model.ProviderKind(req.Kind),
		APIURL:    req.APIURL,
		Username:  req.Username,
		Secret:    req.Secret,
		VerifySSL: req.VerifySSL == nil || *req.VerifySSL,
	}

	if err := provider.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := s.providers.Add(&provider); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, provider)
}

func (s *Server) handleListProviders(c echo.Context) error {
	providers, err := s.providers.GetAll()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, providers)
}

func (s *Server) handleRemoveProvider(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	if _, err := s.providers.GetByID(id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "provider not found"})
	}

	if err := s.providers.Delete(id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSyncProvider(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	provider, err := s.providers.GetByID(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "provider not found"})
	}

	summary, err := s.cache.Sync(c.Request().Context(), provider)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, platform.ErrAuthFailed) {
			status = http.StatusUnauthorized
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleListInventory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	if _, err := s.providers.GetByID(id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "provider not found"})
	}

	items := s.cache.List(id)
	if items == nil {
		items = []model.InventoryItem{}
	}

	return c.JSON(http.StatusOK, items)
}

type createBatchRequest struct {
	SourceProviderID      uint     `json:"source_provider_id"`
	DestinationProviderID uint     `json:"destination_provider_id"`
	VMNames               []string `json:"vm_names"`
	TargetNode            string   `json:"target_node"`
}

func (s *Server) handleCreateBatch(c echo.Context) error {
	var req createBatchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	jobs, err := s.scheduler.CreateBatch(
		req.SourceProviderID,
		req.DestinationProviderID,
		req.VMNames,
		req.TargetNode)

	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		var unknown *scheduler.UnknownVMError
		if errors.As(err, &unknown) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]any{
				"error":       unknown.Error(),
				"unknown_vms": unknown.Names,
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, jobs)
}

func (s *Server) handleListJobs(c echo.Context) error {
	jobs, err := s.scheduler.ListJobs()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, jobs)
}

func (s *Server) handleGetJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	job, err := s.scheduler.GetJob(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleJobLogs(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	if _, err := s.scheduler.GetJob(id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	lines, err := s.logs.ReadAll(id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, lines)
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return uint(id), err
}
