package httpserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/chartstream/internal/eventlog"
	"github.com/tinytelemetry/chartstream/internal/model"
	"github.com/tinytelemetry/chartstream/internal/player"
	"github.com/tinytelemetry/chartstream/internal/session"
)

// maxBodyBytes caps uploaded recordings.
const maxBodyBytes = 32 << 20

// Controller is the narrow session contract required by the HTTP API.
type Controller interface {
	LoadContent(source, content string) error
	LoadFile(path string, maxLineSize int) error
	Play() error
	Pause()
	Stop()
	SetSpeed(speed model.PlaybackSpeed) error
	Text() string
	Spec() model.Spec
	Status() session.Status
}

// Config holds optional collaborators for the Server.
type Config struct {
	Runs        model.RunQuerier // nil disables /api/runs
	MaxLineSize int
}

// Server exposes playback controls over HTTP.
type Server struct {
	addr        string
	ctrl        Controller
	runs        model.RunQuerier
	maxLineSize int
	server      *http.Server
	ctx         context.Context
	cancel      context.CancelFunc
	startTime   time.Time
}

// NewServer creates a new HTTP control server.
func NewServer(addr string, ctrl Controller, conf ...Config) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	cfg := Config{}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = model.DefaultMaxLineSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		ctrl:        ctrl,
		runs:        cfg.Runs,
		maxLineSize: cfg.MaxLineSize,
		ctx:         ctx,
		cancel:      cancel,
		startTime:   time.Now(),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/text", s.handleText)
	api.GET("/spec", s.handleSpec)
	api.GET("/runs", s.handleRuns)
	api.POST("/load", s.handleLoad)
	api.POST("/play", s.handlePlay)
	api.POST("/pause", s.handlePause)
	api.POST("/stop", s.handleStop)
	api.PUT("/speed", s.handleSpeed)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("httpserver: serve error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if s.runs != nil {
		n, err := s.runs.RunCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run history"})
			return
		}
		body["run_count"] = n
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusBody(s.ctrl.Status()))
}

func statusBody(st session.Status) gin.H {
	return gin.H{
		"source":      st.Source,
		"state":       st.State.String(),
		"speed":       float64(st.Speed),
		"cursor":      st.Cursor,
		"events":      st.Events,
		"tokens":      st.Tokens,
		"text_length": st.TextLen,
		"last_error":  st.LastError,
		"has_spec":    st.HasSpec,
	}
}

func (s *Server) handleText(c *gin.Context) {
	c.String(http.StatusOK, s.ctrl.Text())
}

func (s *Server) handleSpec(c *gin.Context) {
	spec := s.ctrl.Spec()
	if spec == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, spec)
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is disabled"})
		return
	}
	limit := model.DefaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	runs, err := s.runs.RecentRuns(limit)
	if err != nil {
		log.Printf("httpserver: recent runs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run history"})
		return
	}
	if runs == nil {
		runs = []model.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// handleLoad accepts either a JSON body {"path": "..."} naming a recording on
// the server, or the raw JSONL recording itself.
func (s *Server) handleLoad(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var err error
	source := c.DefaultQuery("source", "upload")
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req struct {
			Path string `json:"path" binding:"required"`
		}
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing path field"})
			return
		}
		if req.Path == "-" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stdin is not available over HTTP"})
			return
		}
		err = s.ctrl.LoadFile(req.Path, s.maxLineSize)
	} else {
		body, readErr := io.ReadAll(c.Request.Body)
		if readErr != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "recording too large"})
			return
		}
		err = s.ctrl.LoadContent(source, string(body))
	}

	if err != nil {
		c.JSON(loadErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, statusBody(s.ctrl.Status()))
}

func loadErrorStatus(err error) int {
	switch {
	case errors.Is(err, eventlog.ErrNoEvents):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, bufio.ErrTooLong):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handlePlay(c *gin.Context) {
	if err := s.ctrl.Play(); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, player.ErrNoEvents):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, player.ErrClosed):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, statusBody(s.ctrl.Status()))
}

func (s *Server) handlePause(c *gin.Context) {
	s.ctrl.Pause()
	c.JSON(http.StatusOK, statusBody(s.ctrl.Status()))
}

func (s *Server) handleStop(c *gin.Context) {
	s.ctrl.Stop()
	c.JSON(http.StatusOK, statusBody(s.ctrl.Status()))
}

// handleSpeed accepts {"speed": 1.5} or {"speed": "1.5x"}.
func (s *Server) handleSpeed(c *gin.Context) {
	var req struct {
		Speed any `json:"speed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing speed field"})
		return
	}

	var speed model.PlaybackSpeed
	switch v := req.Speed.(type) {
	case float64:
		speed = model.PlaybackSpeed(v)
	case string:
		parsed, err := model.ParseSpeed(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		speed = parsed
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "speed must be a number or string"})
		return
	}

	if err := s.ctrl.SetSpeed(speed); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, statusBody(s.ctrl.Status()))
}
