package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/fax-review-queue/internal/config"
	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
	"github.com/kirillkom/fax-review-queue/internal/observability/metrics"
)

const (
	apiBase          = "/api/v1/faxes"
	serviceName      = "fax-api"
	maxJSONBodyBytes = 64 << 10
)

// Services are the inbound ports the router exposes. Watcher may be nil when
// the process runs without a watch folder.
type Services struct {
	Intake   ports.FaxIntake
	Review   ports.ReviewService
	Stats    ports.StatsService
	Settings ports.SettingsService
	Watcher  ports.WatcherControl
	Taxonomy *domain.Taxonomy
}

type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics
	// Mounts are extra handlers registered verbatim, e.g. "/mcp".
	Mounts map[string]http.Handler
}

type Router struct {
	cfg      config.Config
	svc      Services
	contract *contract
	logger   *slog.Logger
	metrics  *metrics.HTTPServerMetrics
	mounts   map[string]http.Handler
}

func NewRouter(cfg config.Config, svc Services, opts Options) (*Router, error) {
	c, err := loadContract()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		svc:      svc,
		contract: c,
		logger:   logger,
		metrics:  opts.Metrics,
		mounts:   opts.Mounts,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPISpec)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET "+apiBase, rt.listFaxes)
	mux.HandleFunc("GET "+apiBase+"/{$}", rt.listFaxes)
	mux.HandleFunc("GET "+apiBase+"/{id}", rt.getFax)
	mux.HandleFunc("POST "+apiBase+"/{id}/review", rt.reviewFax)
	mux.HandleFunc("POST "+apiBase+"/{id}/process", rt.markProcessed)
	mux.HandleFunc("GET "+apiBase+"/{id}/feedback", rt.listFeedback)
	mux.HandleFunc("POST "+apiBase+"/{id}/feedback", rt.submitFeedback)
	mux.HandleFunc("POST "+apiBase+"/batch/approve", rt.batchApprove)
	mux.HandleFunc("POST "+apiBase+"/batch/review", rt.batchReview)
	mux.HandleFunc("POST "+apiBase+"/upload", rt.uploadFax)
	mux.HandleFunc("GET "+apiBase+"/queue", rt.reviewQueue)
	mux.HandleFunc("GET "+apiBase+"/export.xlsx", rt.exportFaxes)

	mux.HandleFunc("GET "+apiBase+"/summary", rt.summary)
	mux.HandleFunc("GET "+apiBase+"/stats", rt.stats)
	mux.HandleFunc("GET "+apiBase+"/categories", rt.categories)
	mux.HandleFunc("GET "+apiBase+"/settings", rt.getSettings)
	mux.HandleFunc("PUT "+apiBase+"/settings", rt.updateSettings)
	mux.HandleFunc("GET "+apiBase+"/watcher/status", rt.watcherStatus)
	mux.HandleFunc("POST "+apiBase+"/watcher/start", rt.watcherStart)
	mux.HandleFunc("POST "+apiBase+"/watcher/stop", rt.watcherStop)
	mux.HandleFunc("POST "+apiBase+"/watcher/scan", rt.watcherScan)

	for pattern, h := range rt.mounts {
		mux.Handle(pattern, h)
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait())
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readJSON(r *http.Request, schema string, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBodyBytes+1))
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "read request body", err)
	}
	if len(raw) > maxJSONBodyBytes {
		return domain.WrapError(domain.ErrInvalidInput, "read request body", errors.New("request body too large"))
	}
	return rt.contract.decode(schema, raw, dst)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		rt.logger.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

const authenticatedUserHeader = "X-Authenticated-User"

// reviewerFrom prefers the identity set by the authenticating proxy.
func reviewerFrom(r *http.Request, fallback string) string {
	if user := strings.TrimSpace(r.Header.Get(authenticatedUserHeader)); user != "" {
		return user
	}
	return strings.TrimSpace(fallback)
}

func pathID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse path", fmt.Errorf("fax id is required"))
	}
	return id, nil
}
