package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toricodesthings/resumeio-pdf/internal/format"
	"github.com/toricodesthings/resumeio-pdf/internal/ocr"
	"github.com/toricodesthings/resumeio-pdf/internal/pipeline"
	"github.com/toricodesthings/resumeio-pdf/internal/resumeio"
)

type Config struct {
	// Server
	Port string

	// Secrets
	InternalSharedSecret string

	// Logging
	LogLevel  string
	LogFormat string // "json" | "text"

	// Remote rendering service
	MetadataBaseURL  string
	ImageBaseURL     string
	ImageFormat      string
	ImageSize        int
	MaxImageWorkers  int
	RemoteTimeout    time.Duration
	MaxMetadataBytes int64
	MaxImageBytes    int64
	RemoteRateEvery  time.Duration
	RemoteRateBurst  int

	// Recognition
	OCREngine     string
	OCRLanguages  []string
	OCRDPI        int
	TesseractPath string
	OCRTimeout    time.Duration
	MinWords      int

	// Run
	RunTimeout time.Duration
	PDFCreator string

	// Limits
	MaxJSONBodyBytes int64

	// Concurrency
	MaxConcurrentRequests int64
	MaxOCRConcurrent      int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// health
	HealthDegradeRatio float64

	// http
	MaxHeaderBytes int
}

// Load reads the environment. When CONFIG_FILE names a YAML file, its keys
// (the env names, any case) fill in whatever the environment leaves unset.
func Load() (Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return src.load(), nil
}

func (s source) load() Config {
	return Config{
		Port: s.envStr("PORT", "8080"),

		InternalSharedSecret: s.envStr("INTERNAL_SHARED_SECRET", ""),

		LogLevel:  s.envStr("LOG_LEVEL", "info"),
		LogFormat: s.envStr("LOG_FORMAT", "json"),

		MetadataBaseURL:  s.envStr("METADATA_BASE_URL", resumeio.DefaultMetadataBaseURL),
		ImageBaseURL:     s.envStr("IMAGE_BASE_URL", resumeio.DefaultImageBaseURL),
		ImageFormat:      s.envStr("IMAGE_FORMAT", "jpeg"),
		ImageSize:        s.envInt("IMAGE_SIZE", 3000),
		MaxImageWorkers:  s.envInt("MAX_IMAGE_WORKERS", 4),
		RemoteTimeout:    s.envDur("REMOTE_TIMEOUT", 25*time.Second),
		MaxMetadataBytes: int64(s.envInt("MAX_METADATA_BYTES", 2<<20)),
		MaxImageBytes:    int64(s.envInt("MAX_IMAGE_BYTES", 40<<20)),
		RemoteRateEvery:  s.envDur("REMOTE_RATE_EVERY", 100*time.Millisecond),
		RemoteRateBurst:  s.envInt("REMOTE_RATE_BURST", 10),

		OCREngine:     s.envStr("OCR_ENGINE", "tesseract"),
		OCRLanguages:  s.envList("OCR_LANGUAGES", []string{"eng"}),
		OCRDPI:        s.envInt("OCR_DPI", 300),
		TesseractPath: s.envStr("TESSERACT_PATH", "tesseract"),
		OCRTimeout:    s.envDur("OCR_TIMEOUT", 90*time.Second),
		MinWords:      s.envInt("MIN_WORDS", 10),

		RunTimeout: s.envDur("RUN_TIMEOUT", 170*time.Second),
		PDFCreator: s.envStr("PDF_CREATOR", "resumeio-pdf"),

		MaxJSONBodyBytes: int64(s.envInt("MAX_JSON_BODY_BYTES", 64<<10)),

		MaxConcurrentRequests: int64(s.envInt("MAX_CONCURRENT_REQUESTS", 15)),
		MaxOCRConcurrent:      int64(s.envInt("MAX_OCR_CONCURRENT", 3)),

		ReadHeaderTimeout: s.envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       s.envDur("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      s.envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       s.envDur("IDLE_TIMEOUT", 60*time.Second),

		RateLimitEvery: s.envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: s.envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: s.envDur("CLEANUP_INTERVAL", 5*time.Minute),

		HealthDegradeRatio: s.envFloat("HEALTH_DEGRADE_RATIO", 0.9),

		MaxHeaderBytes: s.envInt("MAX_HEADER_BYTES", 1<<20),
	}
}

// Validate checks what every caller needs.
func (c Config) Validate() error {
	if _, err := format.Parse(c.ImageFormat); err != nil {
		return fmt.Errorf("IMAGE_FORMAT: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if !contains(ocr.Names(), c.OCREngine) {
		return fmt.Errorf("OCR_ENGINE %q is not built in (available: %v)", c.OCREngine, ocr.Names())
	}
	for _, u := range []string{c.MetadataBaseURL, c.ImageBaseURL} {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("remote base url %q must be http(s)", u)
		}
	}
	return nil
}

// ValidateServer adds the checks that only apply to the HTTP service.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(c.InternalSharedSecret)) < 32 {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be at least 32 characters")
	}
	return nil
}

func (c Config) Format() format.Format {
	f, err := format.Parse(c.ImageFormat)
	if err != nil {
		return format.JPEG
	}
	return f
}

func (c Config) ClientConfig() resumeio.Config {
	return resumeio.Config{
		MetadataBaseURL:  c.MetadataBaseURL,
		ImageBaseURL:     c.ImageBaseURL,
		Timeout:          c.RemoteTimeout,
		MaxMetadataBytes: c.MaxMetadataBytes,
		MaxImageBytes:    c.MaxImageBytes,
		UserAgent:        c.PDFCreator,
		RateEvery:        c.RemoteRateEvery,
		RateBurst:        c.RemoteRateBurst,
	}
}

func (c Config) OCROptions() ocr.Options {
	return ocr.Options{
		Path:      c.TesseractPath,
		Languages: c.OCRLanguages,
		DPI:       c.OCRDPI,
		Timeout:   c.OCRTimeout,
	}
}

func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Format:          c.Format(),
		Size:            c.ImageSize,
		MaxImageWorkers: c.MaxImageWorkers,
		MinWords:        c.MinWords,
		RunTimeout:      c.RunTimeout,
		Creator:         c.PDFCreator,
	}
}

// Logger builds the process logger. Unknown levels fall back to info.
func (c Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(s))
	return lvl, err
}

type source struct {
	file map[string]string
}

func newSource(path string) (source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return source{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return source{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	file := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch t := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			file[key] = strings.Join(parts, ",")
		case map[string]any:
			return source{}, fmt.Errorf("config file %s: key %s must be a scalar or list", path, k)
		default:
			file[key] = fmt.Sprint(t)
		}
	}
	return source{file: file}, nil
}

func (s source) lookup(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[key])
}

func (s source) envStr(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) envList(key string, fallback []string) []string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '+' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func (s source) envInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (s source) envFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func (s source) envDur(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
