// Package keepalive serves the small HTTP endpoint hosting platforms ping to
// keep the bot process awake.
package keepalive

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cafenotice/noticebot/logger"

	"github.com/gin-gonic/gin"
)

// StatusText is the body of GET /
const StatusText = "✅ Trickcal 디스코드 봇 작동중"

// SeenCounter reports how many notices have been recorded
type SeenCounter interface {
	SeenCount() int
}

// Server is the keep-alive HTTP server
type Server struct {
	addr   string
	seen   SeenCounter
	engine *gin.Engine
	http   *http.Server
	log    *logger.Logger
}

// NewServer creates a server listening on addr
func NewServer(addr string, seen SeenCounter) *Server {
	s := &Server{
		addr: addr,
		seen: seen,
		log:  logger.ForComponent("keepalive"),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	s.RegisterRoutes(r)
	s.engine = r
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/", s.index)
	r.GET("/healthz", s.health)
}

func (s *Server) index(c *gin.Context) {
	c.String(http.StatusOK, StatusText)
}

func (s *Server) health(c *gin.Context) {
	seen := 0
	if s.seen != nil {
		seen = s.seen.SeenCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"seen":   seen,
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("Keep-alive server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("Keep-alive server stopped")
	return nil
}
