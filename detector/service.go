// Package detector is the phishing inference core: it owns the trained
// model, bounds feature extraction in time, vectorizes features, runs the
// model off the caller's goroutine and tags every failure with a Kind.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage is the position of one request in its pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageExtracting
	StageVectorizing
	StagePredicting
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageExtracting:
		return "extracting"
	case StageVectorizing:
		return "vectorizing"
	case StagePredicting:
		return "predicting"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// failureKind is the kind given to untagged errors raised in a stage.
func (s Stage) failureKind() Kind {
	switch s {
	case StageExtracting:
		return KindExtractionFailure
	case StageVectorizing:
		return KindVectorizationFailure
	case StagePredicting:
		return KindInferenceFailure
	default:
		return KindServiceUnavailable
	}
}

// Options tune one ExtractAndPredict call.
type Options struct {
	// Timeout bounds extraction; zero means the service default.
	Timeout time.Duration
	// IncludeFeatures attaches the raw features and their summary.
	IncludeFeatures bool
}

// Analysis is the result of one request.
type Analysis struct {
	RequestID      string          `json:"request_id"`
	URL            string          `json:"url"`
	Label          int             `json:"label"`
	IsPhishing     bool            `json:"is_phishing"`
	Confidence     float64         `json:"confidence"`
	Calibrated     bool            `json:"calibrated"`
	PredictionTime float64         `json:"prediction_time"`
	Timestamp      time.Time       `json:"timestamp"`
	Features       *FeatureMapping `json:"features,omitempty"`
	Summary        *Summary        `json:"summary,omitempty"`
}

// ServiceOptions size the worker pools.
type ServiceOptions struct {
	ExtractionWorkers int
	InferenceWorkers  int
	DefaultTimeout    time.Duration
}

// Service wires the runner, engine and model store. The host calls
// Initialize once at startup and Shutdown once at exit.
type Service struct {
	store          *Store
	runner         *Runner
	engine         *Engine
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// NewService builds a service around store. The extractor may declare a
// subset of the store's schema (missing names are zero-filled) but not
// names outside it.
func NewService(store *Store, extractor Extractor, opts ServiceOptions, logger *zap.Logger) (*Service, error) {
	vectorizer, err := NewVectorizer(store.schema)
	if err != nil {
		return nil, fmt.Errorf("feature schema: %w", err)
	}

	known := make(map[string]struct{}, len(store.schema))
	for _, name := range store.schema {
		known[name] = struct{}{}
	}
	provided := make(map[string]struct{})
	for _, name := range extractor.FeatureNames() {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("extractor feature %q is not in the model schema", name)
		}
		provided[name] = struct{}{}
	}
	for _, name := range store.schema {
		if _, ok := provided[name]; !ok {
			logger.Warn("Feature not provided by extractor, will be zero-filled", zap.String("feature", name))
		}
	}

	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultExtractionTimeout
	}

	return &Service{
		store:          store,
		runner:         NewRunner(extractor, NewPool("extraction", opts.ExtractionWorkers), logger),
		engine:         NewEngine(vectorizer, store, NewPool("inference", opts.InferenceWorkers), logger),
		defaultTimeout: timeout,
		logger:         logger,
	}, nil
}

func (s *Service) Initialize(ctx context.Context) error {
	return s.store.Initialize(ctx)
}

func (s *Service) Shutdown() {
	s.store.Shutdown()
}

func (s *Service) Ready() bool {
	return s.store.Ready()
}

func (s *Service) ModelInfo() ModelInfo {
	return s.store.Info()
}

func (s *Service) Schema() []string {
	return s.engine.vectorizer.Schema()
}

func (s *Service) DefaultTimeout() time.Duration {
	return s.defaultTimeout
}

// ExtractAndPredict runs extract, vectorize and predict in order for
// rawURL. Every error it returns is a *Error.
func (s *Service) ExtractAndPredict(ctx context.Context, rawURL string, opts Options) (*Analysis, error) {
	start := time.Now()
	id := uuid.NewString()
	log := s.logger.With(zap.String("request_id", id), zap.String("url", rawURL))

	if !s.store.Ready() {
		return nil, s.fail(log, StageIdle, serviceUnavailable(nil, "service not initialized"))
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	log.Debug("Stage", zap.Stringer("stage", StageExtracting))
	mapping, err := s.runner.Extract(ctx, rawURL, timeout)
	if err != nil {
		return nil, s.fail(log, StageExtracting, err)
	}

	log.Debug("Stage", zap.Stringer("stage", StageVectorizing))
	x, err := s.engine.Vectorize(mapping)
	if err != nil {
		return nil, s.fail(log, StageVectorizing, err)
	}

	log.Debug("Stage", zap.Stringer("stage", StagePredicting))
	pred, err := s.engine.PredictVector(ctx, x)
	if err != nil {
		return nil, s.fail(log, StagePredicting, err)
	}
	phishingClass, err := s.store.PhishingClass()
	if err != nil {
		return nil, s.fail(log, StagePredicting, err)
	}

	elapsed := time.Since(start)
	a := &Analysis{
		RequestID:      id,
		URL:            rawURL,
		Label:          pred.Label,
		IsPhishing:     pred.Label == phishingClass,
		Confidence:     pred.Confidence,
		Calibrated:     pred.Calibrated,
		PredictionTime: elapsed.Seconds(),
		Timestamp:      time.Now().UTC(),
	}
	if opts.IncludeFeatures {
		summary := Summarize(s.engine.vectorizer.schema, x)
		a.Features = &mapping
		a.Summary = &summary
	}

	log.Info("Analysis completed",
		zap.Stringer("stage", StageDone),
		zap.Int("label", a.Label),
		zap.Bool("is_phishing", a.IsPhishing),
		zap.Float64("confidence", a.Confidence),
		zap.Duration("elapsed", elapsed))
	return a, nil
}

func (s *Service) fail(log *zap.Logger, stage Stage, err error) error {
	ce := withStage(Classify(err, stage.failureKind()), stage)
	fields := []zap.Field{
		zap.Stringer("kind", ce.Kind),
		zap.Stringer("stage", ce.Stage),
		zap.String("message", ce.Message),
	}
	// URLs that cannot be analyzed are routine; keep Error for system faults.
	if ce.Kind.IsClientError() {
		log.Warn("Analysis failed", fields...)
	} else {
		log.Error("Analysis failed", fields...)
	}
	return ce
}
