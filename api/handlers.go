package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"phishing-detector/detector"
	"phishing-detector/features"
)

// Analyzer is the detection service as seen by the HTTP layer.
type Analyzer interface {
	ExtractAndPredict(ctx context.Context, rawURL string, opts detector.Options) (*detector.Analysis, error)
	Ready() bool
	ModelInfo() detector.ModelInfo
	Schema() []string
	DefaultTimeout() time.Duration
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	URL string `json:"url"`
	// Timeout is in seconds; omitted means the service default.
	Timeout         *int `json:"timeout"`
	IncludeFeatures bool `json:"include_features"`
}

type Handler struct {
	svc        Analyzer
	stats      *Stats
	maxTimeout time.Duration
	version    string
	logger     *zap.Logger
	now        func() time.Time
}

func NewHandler(svc Analyzer, maxTimeout time.Duration, version string, logger *zap.Logger) *Handler {
	now := time.Now
	return &Handler{
		svc:        svc,
		stats:      NewStats(now()),
		maxTimeout: maxTimeout,
		version:    version,
		logger:     logger.Named("api"),
		now:        now,
	}
}

func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.stats.recordRejected()
		ValidationError(c, "invalid request body: "+err.Error())
		return
	}

	opts, err := h.parseOptions(req)
	if err != nil {
		h.stats.recordRejected()
		ValidationError(c, err.Error())
		return
	}

	start := h.now()
	a, err := h.svc.ExtractAndPredict(c.Request.Context(), req.URL, opts)
	elapsed := h.now().Sub(start)
	if err != nil {
		h.stats.recordFailure(detector.KindOf(err), elapsed)
		CoreError(c, err)
		return
	}

	h.stats.recordSuccess(elapsed, a.IsPhishing)
	c.JSON(http.StatusOK, a)
}

func (h *Handler) parseOptions(req AnalyzeRequest) (detector.Options, error) {
	if _, err := features.ValidateURL(req.URL); err != nil {
		return detector.Options{}, err
	}

	opts := detector.Options{
		Timeout:         h.svc.DefaultTimeout(),
		IncludeFeatures: req.IncludeFeatures,
	}
	if req.Timeout != nil {
		if *req.Timeout <= 0 {
			return opts, fmt.Errorf("timeout must be a positive number of seconds, got %d", *req.Timeout)
		}
		// compare in seconds; a large count overflows Duration
		limit := int64(h.maxTimeout / time.Second)
		if h.maxTimeout <= 0 {
			limit = int64(math.MaxInt64 / time.Second)
		}
		if int64(*req.Timeout) > limit {
			return opts, fmt.Errorf("timeout must not exceed %d seconds", limit)
		}
		opts.Timeout = time.Duration(*req.Timeout) * time.Second
	}
	return opts, nil
}

// AnalysisResult answers GET /api/v1/analysis/:id. Results are not stored.
func (h *Handler) AnalysisResult(c *gin.Context) {
	NotImplemented(c, fmt.Sprintf("analysis %s: results are not persisted", c.Param("id")))
}

func (h *Handler) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if !h.svc.Ready() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":       status,
		"model_loaded": h.svc.Ready(),
		"version":      h.version,
		"timestamp":    h.now(),
	})
}

func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Phishing URL Detection API",
		"version":     h.version,
		"description": "Detects phishing websites from URL, DNS, TLS, WHOIS, page and reputation features",
		"n_features":  len(h.svc.Schema()),
		"endpoints": []string{
			"POST /api/v1/analyze - Analyze URL for phishing",
			"GET /api/v1/analysis/:id - Get analysis result",
			"GET /api/v1/info - Get API information",
			"GET /api/v1/model - Get model information",
			"GET /api/v1/stats - Get usage statistics",
			"GET /api/v1/health - Health check",
		},
	})
}

func (h *Handler) Model(c *gin.Context) {
	info := h.svc.ModelInfo()
	c.JSON(http.StatusOK, gin.H{
		"model":         info,
		"feature_names": h.svc.Schema(),
	})
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Snapshot(h.now()))
}
