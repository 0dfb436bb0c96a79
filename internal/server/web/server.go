// Package web serves the kiosk browser surface: the operator page, the live
// camera stream, the SSE feedback channel and a small JSON API.
package web

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"presence-kiosk-go/internal/config"
	"presence-kiosk-go/internal/core/session"
	"presence-kiosk-go/internal/journal"
	"presence-kiosk-go/internal/server/sse"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Scanner is the kiosk control surface the handlers need.
type Scanner interface {
	RequestScan()
}

// Server wires the gin engine to the kiosk's collaborators.
type Server struct {
	cfg     *config.Config
	hub     *sse.Hub
	journal *journal.Journal
	frames  session.FrameSource
	scanner Scanner
	engine  *gin.Engine
}

// NewServer builds the HTTP surface. The journal may be nil, in which case
// health and activity endpoints degrade gracefully.
func NewServer(cfg *config.Config, hub *sse.Hub, j *journal.Journal, frames session.FrameSource, scanner Scanner) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		cfg:     cfg,
		hub:     hub,
		journal: j,
		frames:  frames,
		scanner: scanner,
		engine:  engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.LoadHTMLGlob(filepath.Join(s.cfg.Server.TemplateDir, "*.html"))
	s.engine.Static(s.cfg.Server.SnapshotURL, s.cfg.Server.SnapshotDir)

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/events", s.handleSSE)
	s.engine.GET("/stream", s.handleStream)

	api := s.engine.Group("/api")
	api.POST("/scan", s.handleScan)
	api.GET("/health", s.handleHealth)
	api.GET("/activity", s.handleActivity)
	api.GET("/system/status", s.handleSystemStatus)
}

// Run blocks serving HTTP until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	log.Infof("Starting kiosk web server on %s", addr)
	return s.engine.Run(addr)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"streamURL": "/stream",
	})
}

// handleSSE streams feedback events to one browser until it disconnects.
func (s *Server) handleSSE(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 10)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// handleStream serves the live camera preview as an MJPEG multipart stream.
func (s *Server) handleStream(c *gin.Context) {
	const boundary = "kioskframe"
	c.Writer.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	c.Writer.Header().Set("Cache-Control", "no-cache")

	interval := time.Second / 10
	if s.cfg.Camera.FPS > 0 {
		interval = time.Second / time.Duration(s.cfg.Camera.FPS)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			frame, err := s.frames.CurrentFrame()
			if err != nil || frame == nil {
				continue
			}
			_, err = fmt.Fprintf(c.Writer, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
				boundary, len(frame.JPEG))
			if err != nil {
				return
			}
			if _, err := c.Writer.Write(frame.JPEG); err != nil {
				return
			}
			if _, err := io.WriteString(c.Writer, "\r\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// handleScan is the hardware scan button's HTTP twin.
func (s *Server) handleScan(c *gin.Context) {
	s.scanner.RequestScan()
	c.JSON(http.StatusAccepted, gin.H{"status": "scan requested"})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.journal != nil {
		if err := s.journal.Ping(); err != nil {
			log.WithError(err).Error("Health check failed: journal unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "journal": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleActivity returns the kiosk's own journal of recent attendance events.
func (s *Server) handleActivity(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"events": []journal.AttendanceEvent{}})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}

	events, err := s.journal.RecentEvents(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, getSystemStats())
}
