package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/resumeio-pdf/internal/config"
	"github.com/toricodesthings/resumeio-pdf/internal/ocr"
	"github.com/toricodesthings/resumeio-pdf/internal/pipeline"
	"github.com/toricodesthings/resumeio-pdf/internal/resumeio"
)

type server struct {
	cfg  config.Config
	proc *pipeline.Processor
	log  *slog.Logger

	requestSem *semaphore.Weighted
	ocrSem     *semaphore.Weighted

	// Per-IP rate limiters
	limiters sync.Map

	metrics serverMetrics
}

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
	generated     int64
	failed        int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}
func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}
func (m *serverMetrics) runDone(ok bool) {
	m.mu.Lock()
	if ok {
		m.generated++
	} else {
		m.failed++
	}
	m.mu.Unlock()
}
func (m *serverMetrics) get() (total, active int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalRequests, m.activeReqs
}
func (m *serverMetrics) runs() (generated, failed int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generated, m.failed
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.ValidateServer(); err != nil {
		panic(err)
	}
	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	engine, err := ocr.New(cfg.OCREngine, cfg.OCROptions())
	if err != nil {
		panic(err)
	}
	client := resumeio.New(cfg.ClientConfig())
	proc := pipeline.New(client, engine, cfg.PipelineOptions(), logger)

	s := newServer(cfg, proc, logger)

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.cleanupRateLimiters(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	logger.Info("resumeio-pdf listening",
		"addr", srv.Addr,
		"engine", engine.Name(),
		"max_concurrent", cfg.MaxConcurrentRequests,
		"max_ocr", cfg.MaxOCRConcurrent)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func newServer(cfg config.Config, proc *pipeline.Processor, logger *slog.Logger) *server {
	return &server{
		cfg:        cfg,
		proc:       proc,
		log:        logger,
		requestSem: semaphore.NewWeighted(cfg.MaxConcurrentRequests),
		ocrSem:     semaphore.NewWeighted(cfg.MaxOCRConcurrent),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withLogging, s.withRecovery)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.withInternalAuth(s.handleMetrics))

	r.Post("/resume/pdf",
		s.withInternalAuth(
			s.withRateLimit(
				s.withConcurrencyLimit(s.handleGenerate))))

	r.Get("/resume/{token}.pdf",
		s.withInternalAuth(
			s.withRateLimit(
				s.withConcurrencyLimit(s.handleGetPDF))))

	return r
}

func (s *server) cleanupRateLimiters(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		total, active := s.metrics.get()
		s.log.Info("stats",
			"active", active,
			"total", total,
			"goroutines", runtime.NumGoroutine(),
			"mem_mb", m.Alloc/(1<<20))

		s.limiters.Clear()
	}
}
