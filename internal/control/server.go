// Package control exposes the tour controls over HTTP: the same start, stop,
// next, prev, pause, resume and jump affordances an on-page tour bar offers.
package control

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/v0xg/demotour/internal/playback"
	"github.com/v0xg/demotour/internal/scenario"
)

// Engine is the playback surface the server drives.
type Engine interface {
	Start(scenarioID string, mode playback.Mode) error
	Stop()
	Next()
	Prev()
	Pause()
	Resume()
	JumpToStep(i int)
	Snapshot() playback.Snapshot
}

// Catalog lists the available scenarios.
type Catalog interface {
	List() []*scenario.Scenario
}

// StartRequest is the body of POST /tour/start.
type StartRequest struct {
	Scenario string `json:"scenario"`
	Mode     string `json:"mode" binding:"omitempty,oneof=cinematic guided"`
}

// ScenarioSummary describes one scenario in GET /scenarios.
type ScenarioSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Steps int    `json:"steps"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	engine          Engine
	catalog         Catalog
	defaultScenario string
	logger          *slog.Logger
}

// Options configures a Server.
type Options struct {
	// DefaultScenario is started when POST /tour/start names none.
	DefaultScenario string

	// Logger records refused requests. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewServer creates the control server.
func NewServer(engine Engine, catalog Catalog, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, catalog: catalog, defaultScenario: opts.DefaultScenario, logger: logger}
}

// Register mounts the control routes on g.
func (s *Server) Register(g gin.IRouter) {
	g.GET("/tour", s.state)
	g.GET("/scenarios", s.scenarios)

	tour := g.Group("/tour")
	tour.POST("/start", s.start)
	tour.POST("/stop", s.transition(s.engine.Stop))
	tour.POST("/next", s.transition(s.engine.Next))
	tour.POST("/prev", s.transition(s.engine.Prev))
	tour.POST("/pause", s.transition(s.engine.Pause))
	tour.POST("/resume", s.transition(s.engine.Resume))
	tour.POST("/jump/:index", s.jump)
}

// Handler returns a gin engine serving the control routes.
func (s *Server) Handler() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())
	s.Register(g)
	return g
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *Server) scenarios(c *gin.Context) {
	list := s.catalog.List()
	out := make([]ScenarioSummary, 0, len(list))
	for _, sc := range list {
		out = append(out, ScenarioSummary{ID: sc.ID, Name: sc.Name, Steps: sc.Len()})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) start(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Wrong request body format: " + err.Error()})
			return
		}
	}
	if req.Scenario == "" {
		req.Scenario = s.defaultScenario
	}

	mode, err := playback.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	if err := s.engine.Start(req.Scenario, mode); err != nil {
		var cfgErr *playback.ConfigurationError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
			return
		}
		s.logger.Error("tour start failed", "scenario", req.Scenario, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *Server) transition(op func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		op()
		c.JSON(http.StatusOK, s.engine.Snapshot())
	}
}

func (s *Server) jump(c *gin.Context) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "step index must be an integer"})
		return
	}
	s.engine.JumpToStep(i)
	c.JSON(http.StatusOK, s.engine.Snapshot())
}
