package detector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

// Model is a trained classifier over fixed-length feature vectors.
type Model interface {
	Predict(x []float64) (int, error)
}

// ProbabilisticModel can also report one probability per class, aligned
// with Classes.
type ProbabilisticModel interface {
	Model
	PredictProba(x []float64) ([]float64, error)
	Classes() []int
}

// Prediction is a verdict and its confidence. Calibrated is false when the
// model has no probability output, in which case Confidence is exactly 1.
type Prediction struct {
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
	Calibrated bool    `json:"calibrated"`
}

// ModelInfo describes the loaded artifact.
type ModelInfo struct {
	Status        string `json:"status"`
	ModelType     string `json:"model_type,omitempty"`
	ModelPath     string `json:"model_path"`
	Probabilistic bool   `json:"probabilistic"`
	Features      int    `json:"n_features,omitempty"`
	PhishingClass int    `json:"phishing_class"`
}

type loadedModel struct {
	model         Model
	proba         ProbabilisticModel
	kind          string
	features      int
	phishingClass int
}

// Loader decodes a model artifact. The default is DecodeArtifact.
type Loader func(data []byte) (*Artifact, error)

// Store owns the one live model. Initialize and Shutdown must not race with
// Predict; Predict itself is lock-free and read-only.
type Store struct {
	path   string
	schema []string
	load   Loader
	logger *zap.Logger

	current     atomic.Pointer[loadedModel]
	initialized atomic.Bool
}

// NewStore returns an uninitialized store for the artifact at path. schema
// is the canonical feature order the artifact must agree with.
func NewStore(path string, schema []string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		schema: schema,
		load:   DecodeArtifact,
		logger: logger.Named("model"),
	}
}

// WithLoader overrides artifact decoding.
func (s *Store) WithLoader(load Loader) *Store {
	s.load = load
	return s
}

// Initialize reads and decodes the artifact. It may run once; the store
// cannot be re-initialized after Shutdown.
func (s *Store) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return serviceUnavailable(err, "model store initialization canceled")
	}
	if !s.initialized.CompareAndSwap(false, true) {
		return serviceUnavailable(nil, "model store already initialized")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return serviceUnavailable(nil, "model file not found: %s", s.path)
		}
		return serviceUnavailable(err, "failed to read model %s", s.path)
	}
	if len(data) == 0 {
		return serviceUnavailable(nil, "model file is empty: %s", s.path)
	}

	art, err := s.load(data)
	if err != nil {
		return serviceUnavailable(err, "failed to load model %s", s.path)
	}
	if art == nil || art.Model == nil {
		return serviceUnavailable(nil, "model loaded but is empty: %s", s.path)
	}
	if err := art.checkSchema(s.schema); err != nil {
		return serviceUnavailable(err, "model %s does not match feature schema", s.path)
	}

	lm := &loadedModel{
		model:         art.Model,
		kind:          art.Type,
		features:      len(s.schema),
		phishingClass: art.PhishingClass,
	}
	if p, ok := art.Model.(ProbabilisticModel); ok {
		lm.proba = p
	}
	s.current.Store(lm)

	s.logger.Info("Model loaded",
		zap.String("path", s.path),
		zap.String("type", lm.kind),
		zap.Bool("probabilistic", lm.proba != nil),
		zap.Int("features", lm.features))
	return nil
}

// Ready reports whether Predict can be called.
func (s *Store) Ready() bool {
	return s.current.Load() != nil
}

// PhishingClass is the label that means "phishing" for the loaded model.
func (s *Store) PhishingClass() (int, error) {
	lm := s.current.Load()
	if lm == nil {
		return 0, serviceUnavailable(nil, "model not loaded")
	}
	return lm.phishingClass, nil
}

// Predict classifies one vector. Before Initialize or after Shutdown it
// always fails with ServiceUnavailable.
func (s *Store) Predict(x []float64) (Prediction, error) {
	lm := s.current.Load()
	if lm == nil {
		return Prediction{}, serviceUnavailable(nil, "model not loaded")
	}
	if len(x) != lm.features {
		return Prediction{}, inferenceFailure(nil, "feature vector has %d entries, model expects %d", len(x), lm.features)
	}
	return lm.predict(x)
}

func (lm *loadedModel) predict(x []float64) (p Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = inferenceFailure(fmt.Errorf("%v", r), "model prediction panicked")
		}
	}()

	if lm.proba == nil {
		label, err := lm.model.Predict(x)
		if err != nil {
			return Prediction{}, inferenceFailure(err, "model prediction failed")
		}
		return Prediction{Label: label, Confidence: 1.0}, nil
	}

	probs, err := lm.proba.PredictProba(x)
	if err != nil {
		return Prediction{}, inferenceFailure(err, "model prediction failed")
	}
	classes := lm.proba.Classes()
	if len(probs) == 0 || len(probs) != len(classes) {
		return Prediction{}, inferenceFailure(nil, "model returned %d probabilities for %d classes", len(probs), len(classes))
	}
	best := 0
	for i, v := range probs {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return Prediction{}, inferenceFailure(nil, "model returned invalid probability %v", v)
		}
		if v > probs[best] {
			best = i
		}
	}
	return Prediction{Label: classes[best], Confidence: probs[best], Calibrated: true}, nil
}

// Shutdown drops the model. It is idempotent.
func (s *Store) Shutdown() {
	if s.current.Swap(nil) != nil {
		s.logger.Info("Model released", zap.String("path", s.path))
	}
}

// Info reports the store status.
func (s *Store) Info() ModelInfo {
	lm := s.current.Load()
	if lm == nil {
		return ModelInfo{Status: "not_loaded", ModelPath: s.path}
	}
	return ModelInfo{
		Status:        "loaded",
		ModelType:     lm.kind,
		ModelPath:     s.path,
		Probabilistic: lm.proba != nil,
		Features:      lm.features,
		PhishingClass: lm.phishingClass,
	}
}
