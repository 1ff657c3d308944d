package detector

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultExtractionTimeout bounds extraction when the caller gives none.
const DefaultExtractionTimeout = 30 * time.Second

// Extractor computes the raw feature sequence for a URL. It may be slow and
// may ignore ctx; FeatureNames declares the order and length of the result.
type Extractor interface {
	FeatureNames() []string
	Extract(ctx context.Context, rawURL string) ([]float64, error)
}

// Runner drives an Extractor on the extraction pool under a hard deadline.
type Runner struct {
	extractor Extractor
	pool      *Pool
	logger    *zap.Logger
}

func NewRunner(extractor Extractor, pool *Pool, logger *zap.Logger) *Runner {
	return &Runner{
		extractor: extractor,
		pool:      pool,
		logger:    logger.Named("runner"),
	}
}

// Extract returns the feature mapping for rawURL, or fails with
// ExtractionTimeout once timeout has elapsed. A timed-out worker is
// abandoned: it may run on, but its result is dropped.
func (r *Runner) Extract(ctx context.Context, rawURL string, timeout time.Duration) (FeatureMapping, error) {
	if timeout <= 0 {
		timeout = DefaultExtractionTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := r.extractor.FeatureNames()

	done, err := submit(ctx, r.pool, func() ([]float64, error) {
		return r.extractor.Extract(ctx, rawURL)
	})
	if err != nil {
		r.logger.Warn("Extraction pool saturated, no worker freed before deadline",
			zap.String("url", rawURL),
			zap.String("pool", r.pool.name),
			zap.Int("workers", r.pool.size))
		return FeatureMapping{}, r.ctxFailure(err, rawURL, timeout)
	}

	select {
	case <-ctx.Done():
		return FeatureMapping{}, r.ctxFailure(ctx.Err(), rawURL, timeout)
	case o := <-done:
		// A result racing the deadline loses.
		if ctx.Err() != nil {
			return FeatureMapping{}, r.ctxFailure(ctx.Err(), rawURL, timeout)
		}
		if o.err != nil {
			r.logger.Warn("Feature extraction failed", zap.String("url", rawURL), zap.Error(o.err))
			return FeatureMapping{}, extractionFailure(o.err, "feature extraction failed")
		}
		if len(o.val) != len(names) {
			return FeatureMapping{}, vectorizationFailure(nil, "feature count mismatch: got %d, expected %d", len(o.val), len(names))
		}
		return MappingFromValues(names, o.val), nil
	}
}

func (r *Runner) ctxFailure(err error, rawURL string, timeout time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		r.logger.Warn("Feature extraction timed out", zap.String("url", rawURL), zap.Duration("timeout", timeout))
		return extractionTimeout("feature extraction timed out after %s", timeout)
	}
	return extractionFailure(err, "feature extraction canceled")
}
