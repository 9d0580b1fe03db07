package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/toricodesthings/resumeio-pdf/internal/format"
	"github.com/toricodesthings/resumeio-pdf/internal/pipeline"
	"github.com/toricodesthings/resumeio-pdf/internal/types"
)

const (
	maxTokenLen = 128
	maxSize     = 8000
)

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := s.metrics.get()
	status := "healthy"
	code := http.StatusOK

	ratio := s.cfg.HealthDegradeRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.9
	}

	if active >= int64(float64(s.cfg.MaxConcurrentRequests)*ratio) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": "1.0.0",
	})
}

func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	total, active := s.metrics.get()
	generated, failed := s.metrics.runs()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests": active,
		"totalRequests":  total,
		"generatedPDFs":  generated,
		"failedRuns":     failed,
		"goroutines":     runtime.NumGoroutine(),
		"memAllocMB":     m.Alloc / (1 << 20),
		"memSysMB":       m.Sys / (1 << 20),
	})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[types.GenerateRequest](r, s.cfg.MaxJSONBodyBytes)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", sanitizeError(err))
		return
	}
	s.generate(w, r, req)
}

func (s *server) handleGetPDF(w http.ResponseWriter, r *http.Request) {
	req := types.GenerateRequest{
		Token:  chi.URLParam(r, "token"),
		Format: r.URL.Query().Get("format"),
	}
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "validation_failed", "size must be an integer")
			return
		}
		req.Size = n
	}
	s.generate(w, r, req)
}

func (s *server) generate(w http.ResponseWriter, r *http.Request, req types.GenerateRequest) {
	opts, err := s.requestOptions(req)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "validation_failed", sanitizeError(err))
		return
	}

	ctx := r.Context()

	// OCR capacity gating: every run recognizes every page
	if err := s.ocrSem.Acquire(ctx, 1); err != nil {
		writeErr(w, http.StatusServiceUnavailable, "ocr_capacity", "OCR at capacity")
		return
	}
	defer s.ocrSem.Release(1)

	run := s.proc.Derive(opts).NewRun(req.Token)
	res, err := run.Execute(ctx)
	s.metrics.runDone(err == nil)
	if err != nil {
		status, code := statusFor(err)
		resp := types.ErrorResponse{
			Success: false,
			Error:   sanitizeError(err),
			Code:    code,
			RunID:   run.ID(),
		}
		var te *types.Error
		if errors.As(err, &te) {
			resp.Stage = te.Stage
		}
		writeJSON(w, status, resp)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Token+"_resume.pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	w.Header().Set("X-Run-ID", res.RunID)
	w.Header().Set("X-Page-Count", strconv.Itoa(len(res.Pages)))
	w.Header().Set("X-Cache-Stamp", res.Stamp)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.PDF)
}

func (s *server) requestOptions(req types.GenerateRequest) (pipeline.Options, error) {
	if err := validateToken(req.Token); err != nil {
		return pipeline.Options{}, err
	}
	opts := s.proc.Options()
	if strings.TrimSpace(req.Format) != "" {
		f, err := format.Parse(req.Format)
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.Format = f
	}
	if req.Size != 0 {
		if req.Size < 1 || req.Size > maxSize {
			return pipeline.Options{}, fmt.Errorf("size must be between 1 and %d", maxSize)
		}
		opts.Size = req.Size
	}
	return opts, nil
}

func validateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token required")
	}
	if len(token) > maxTokenLen {
		return fmt.Errorf("token too long")
	}
	for _, c := range token {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return fmt.Errorf("token contains invalid character %q", c)
		}
	}
	return nil
}

// statusFor maps a run failure to an HTTP status and error code.
func statusFor(err error) (int, string) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "timeout"
	}
	var te *types.Error
	if !errors.As(err, &te) {
		return http.StatusInternalServerError, "internal_error"
	}
	switch te.Kind {
	case types.KindRemoteFetch:
		if te.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, "not_found"
		}
		return http.StatusBadGateway, string(te.Kind)
	case types.KindMalformedMetadata, types.KindImageDecode:
		return http.StatusBadGateway, string(te.Kind)
	default:
		return http.StatusInternalServerError, string(te.Kind)
	}
}
