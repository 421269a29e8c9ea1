// Package server exposes the curl parser over a small JSON API.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/curlparse/internal/curl"
	"github.com/unkn0wn-root/curlparse/internal/history"
	"github.com/unkn0wn-root/curlparse/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// HistoryStore is the subset of history.Store the API needs.
type HistoryStore interface {
	Append(ctx context.Context, entry history.Entry) (history.Entry, error)
	Entries(ctx context.Context, limit int) ([]history.Entry, error)
	Get(ctx context.Context, id string) (history.Entry, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type Options struct {
	Parser         *curl.Parser
	History        HistoryStore
	Telemetry      telemetry.Instrumenter
	AllowedOrigins []string
	// Quiet drops the per-request access log.
	Quiet bool
	Now   func() time.Time
}

type Server struct {
	parser  *curl.Parser
	history HistoryStore
	tel     telemetry.Instrumenter
	now     func() time.Time
	engine  *gin.Engine
}

func New(opts Options) *Server {
	s := &Server{
		parser:  opts.Parser,
		history: opts.History,
		tel:     opts.Telemetry,
		now:     opts.Now,
	}
	if s.parser == nil {
		s.parser = curl.NewParser(curl.Options{})
	}
	if s.tel == nil {
		s.tel = telemetry.Noop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := gin.New()
	if !opts.Quiet {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.health)

		api.POST("/curl/parse", s.parse)
		api.POST("/curl/parse-all", s.parseAll)
		api.POST("/curl/job-source", s.jobSource)

		api.GET("/history", s.listHistory)
		api.GET("/history/:id", s.getHistory)
		api.DELETE("/history/:id", s.deleteHistory)
	}
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("curlparse api listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = origins
	return config
}
