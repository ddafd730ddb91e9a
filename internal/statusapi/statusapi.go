// Package statusapi serves a read-only, loopback-only HTTP view of the
// run's health and progress (SPEC_FULL.md §4.8 **[ADDED]**). It never
// mutates state — no endpoint here can start, stop, or reconfigure a
// run — that remains the CLI's job.
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/robocurse/robocurse/internal/health"
	"github.com/robocurse/robocurse/internal/state"
)

const component = "statusapi"

// Server wraps the gin engine and the underlying http.Server so it can
// be started in a goroutine and shut down gracefully, mirroring the
// teacher's volume-daemon main.go pattern.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	runState   *state.RunState
	healthPath string
}

// New builds a Server bound to addr (expected to be a loopback address,
// e.g. "127.0.0.1:9191"); binding is the caller's responsibility to
// enforce, this package just listens on whatever address it's given.
func New(addr string, runState *state.RunState, healthFilePath string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:     engine,
		runState:   runState,
		healthPath: healthFilePath,
		httpServer: &http.Server{Addr: addr},
	}
	s.httpServer.Handler = engine
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.getHealthz)
	s.engine.GET("/profiles/current", s.getCurrentProfile)
	s.engine.GET("/progress", s.getProgress)
	s.engine.GET("/swagger/*any", gin.WrapH(httpSwagger.WrapHandler))
}

// Start launches the HTTP server in a background goroutine. Errors
// other than a clean shutdown are logged, not returned, since by the
// time ListenAndServe fails asynchronously there's no caller left to
// hand the error to.
func (s *Server) Start() {
	log.WithFields(log.Fields{
		"component": component,
		"addr":      s.httpServer.Addr,
	}).Info("starting status API")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("component", component).WithError(err).Error("status API stopped unexpectedly")
		}
	}()
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// getHealthz returns the same structure as the health file on disk, so
// a reader that's already polling robocurse-health.json and one that
// polls this endpoint see identical content (spec §4.8).
//
// @Summary Health status
// @Produce json
// @Success 200 {object} health.Status
// @Router /healthz [get]
func (s *Server) getHealthz(c *gin.Context) {
	st, err := health.Load(s.healthPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if st == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "health file not written yet"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// currentProfileResponse is the /profiles/current payload.
type currentProfileResponse struct {
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Index           int    `json:"index"`
	ChunksPending   int    `json:"chunks_pending"`
	ChunksActive    int    `json:"chunks_active"`
	ChunksCompleted int64  `json:"chunks_completed"`
}

// getCurrentProfile reports the active profile's name, a dashboard-safe
// slug, and chunk counts.
//
// @Summary Current profile
// @Produce json
// @Success 200 {object} currentProfileResponse
// @Router /profiles/current [get]
func (s *Server) getCurrentProfile(c *gin.Context) {
	p := s.runState.CurrentProfile()
	if p == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active profile"})
		return
	}
	snap := s.runState.Snapshot()
	c.JSON(http.StatusOK, currentProfileResponse{
		Name:            p.Name,
		Slug:            slug.Make(p.Name),
		Index:           snap.CurrentProfileIndex,
		ChunksPending:   snap.ChunksPending,
		ChunksActive:    snap.ChunksActive,
		ChunksCompleted: snap.CompletedCount,
	})
}

// progressEntry mirrors one active job's progress buffer.
type progressEntry struct {
	ChunkId      int64  `json:"chunk_id"`
	Source       string `json:"source"`
	CurrentFile  string `json:"current_file"`
	BytesCopied  int64  `json:"bytes_copied"`
	FilesCopied  int64  `json:"files_copied"`
}

// getProgress returns a read-only snapshot of every active job's
// progress buffer.
//
// @Summary Active job progress
// @Produce json
// @Success 200 {array} progressEntry
// @Router /progress [get]
func (s *Server) getProgress(c *gin.Context) {
	jobs := s.runState.ActiveJobs.Snapshot()
	entries := make([]progressEntry, 0, len(jobs))
	for _, j := range jobs {
		entries = append(entries, progressEntry{
			ChunkId:     j.Chunk.ChunkId,
			Source:      j.Chunk.SourceSubpath,
			CurrentFile: j.Progress.CurrentFile(),
			BytesCopied: j.Progress.BytesCopied(),
			FilesCopied: j.Progress.FilesCopied(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now(),
		"jobs":      entries,
	})
}
