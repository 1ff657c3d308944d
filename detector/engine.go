package detector

import (
	"context"

	"go.uber.org/zap"
)

// Engine vectorizes features and runs the model on the inference pool.
type Engine struct {
	vectorizer *Vectorizer
	store      *Store
	pool       *Pool
	logger     *zap.Logger
}

func NewEngine(vectorizer *Vectorizer, store *Store, pool *Pool, logger *zap.Logger) *Engine {
	return &Engine{
		vectorizer: vectorizer,
		store:      store,
		pool:       pool,
		logger:     logger.Named("engine"),
	}
}

// Vectorize exposes the engine's vectorizer.
func (e *Engine) Vectorize(m FeatureMapping) ([]float64, error) {
	return e.vectorizer.Vectorize(m)
}

// Predict vectorizes m and classifies it.
func (e *Engine) Predict(ctx context.Context, m FeatureMapping) (Prediction, error) {
	x, err := e.Vectorize(m)
	if err != nil {
		return Prediction{}, err
	}
	return e.PredictVector(ctx, x)
}

// PredictVector classifies x on a pool worker. There is no deadline: once a
// worker is running, the call waits for the model to finish. ctx only bounds
// the wait for a free worker.
func (e *Engine) PredictVector(ctx context.Context, x []float64) (Prediction, error) {
	if !e.store.Ready() {
		return Prediction{}, serviceUnavailable(nil, "model not loaded")
	}
	done, err := submit(ctx, e.pool, func() (Prediction, error) {
		return e.store.Predict(x)
	})
	if err != nil {
		return Prediction{}, serviceUnavailable(err, "no inference worker available")
	}
	o := <-done
	if o.err != nil {
		return Prediction{}, Classify(o.err, KindInferenceFailure)
	}
	e.logger.Debug("Prediction", zap.Int("label", o.val.Label), zap.Float64("confidence", o.val.Confidence))
	return o.val, nil
}
