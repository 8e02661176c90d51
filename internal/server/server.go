// Package server exposes the planner over a JSON HTTP API.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"planner/internal/model"
	"planner/internal/recurrence"
	"planner/internal/repository"
	"planner/internal/series"
	"planner/internal/service"
)

// Server provides HTTP handlers for tasks, series and generation.
type Server struct {
	engine     *gin.Engine
	users      *repository.UserRepository
	tasks      *service.TaskService
	generation *service.GenerationService
	log        zerolog.Logger
	now        func() time.Time
}

// New constructs the HTTP server with routes and middleware configured.
func New(users *repository.UserRepository, tasks *service.TaskService, generation *service.GenerationService, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(log, "/api/healthz"))

	srv := &Server{
		engine:     router,
		users:      users,
		tasks:      tasks,
		generation: generation,
		log:        log,
		now:        time.Now,
	}
	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.POST("/recurrence/preview", s.handlePreview)
		api.POST("/users", s.handleCreateUser)

		user := api.Group("/users/:user_id")
		{
			user.GET("/tasks", s.handleListTasks)
			user.POST("/tasks", s.handleCreateTask)
			user.PATCH("/tasks/:id", s.handleEditTask)
			user.DELETE("/tasks/:id", s.handleDeleteTask)
			user.POST("/tasks/:id/complete", s.handleCompleteTask)
			user.POST("/tasks/:id/skip", s.handleSkipTask)
			user.GET("/tasks/:id/affected", s.handleAffected)

			user.GET("/series", s.handleListSeries)
			user.POST("/series/:id/pause", s.handlePauseSeries)
			user.POST("/series/:id/resume", s.handleResumeSeries)
		}

		api.POST("/generation/run", s.handleRunGeneration)
		api.GET("/generation/stats", s.handleGenerationStats)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	state, hasRun := s.generation.State()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"generation": state.String(),
		"has_run":    hasRun,
	})
}

type userRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	user := model.User{FirstName: req.FirstName, LastName: req.LastName, Username: req.Username}
	if err := s.users.Create(c.Request.Context(), &user); err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

// loadUser resolves the :user_id path parameter.
func (s *Server) loadUser(c *gin.Context) (*model.User, bool) {
	id, err := strconv.ParseUint(c.Param("user_id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return nil, false
	}
	user, err := s.users.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return user, true
}

// parseScope reads the ?scope= query parameter.
func (s *Server) parseScope(c *gin.Context) (series.Scope, bool) {
	scope, err := series.ParseScope(c.Query("scope"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return "", false
	}
	return scope, true
}

// fail maps domain errors onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *recurrence.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid recurrence rule", "errors": verr.Errors})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrTitleRequired),
		errors.Is(err, service.ErrNotSeriesInstance),
		errors.Is(err, series.ErrUnknownScope),
		errors.Is(err, series.ErrReferenceNotFound):
		s.respondError(c, http.StatusBadRequest, err)
	default:
		s.respondError(c, http.StatusInternalServerError, err)
	}
}

// respondError logs server-side failures and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
