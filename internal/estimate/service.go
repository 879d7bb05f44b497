// Package estimate runs one price estimate request: resolve the selected
// make/model, optionally normalize the uploaded photo, then predict.
package estimate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Brownie44l1/carprice-api/internal/catalog"
	"github.com/Brownie44l1/carprice-api/internal/imaging"
	"github.com/Brownie44l1/carprice-api/internal/model"
)

// Stage is a point in the request lifecycle.
type Stage string

const (
	StageReceived        Stage = "received"
	StageValidated       Stage = "validated"
	StageImageNormalized Stage = "image_normalized"
	StagePredicted       Stage = "predicted"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

type Catalog interface {
	Lookup(id int) (catalog.CarModel, error)
}

type Normalizer interface {
	Normalize(data []byte) (*imaging.Image, error)
}

type Predictor interface {
	Predict(f model.Features) (model.Estimate, error)
}

// Observer receives the outcome of every run.
type Observer interface {
	ObserveEstimate(stage string, failed bool, elapsed time.Duration)
}

// Submission is one user request. Image is optional.
type Submission struct {
	Year    int
	Mileage int
	ModelID int
	Image   []byte
}

// Result is a completed estimate. Image is nil when no photo was submitted.
type Result struct {
	Make  string         `json:"make"`
	Model string         `json:"model"`
	Price float64        `json:"price_estimate"`
	Image *imaging.Image `json:"-"`
	Stage Stage          `json:"stage"`
}

// StageError reports the stage that was being entered when the request
// failed. It unwraps to the component's sentinel error.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("estimate failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Service is safe for concurrent use; all shared collaborators are
// read-only after startup.
type Service struct {
	catalog    Catalog
	normalizer Normalizer
	predictor  Predictor
	observer   Observer
}

// NewService wires the pipeline. observer may be nil.
func NewService(c Catalog, n Normalizer, p Predictor, observer Observer) *Service {
	return &Service{
		catalog:    c,
		normalizer: n,
		predictor:  p,
		observer:   observer,
	}
}

// Estimate runs sub through the pipeline. On failure it returns a
// *StageError and no result.
func (s *Service) Estimate(ctx context.Context, sub Submission) (*Result, error) {
	start := time.Now()
	reached := StageReceived

	fail := func(stage Stage, err error) (*Result, error) {
		s.observe(reached, true, start)
		slog.WarnContext(ctx, "Estimate failed",
			"stage", stage,
			"model_id", sub.ModelID,
			"error", err,
		)
		return nil, &StageError{Stage: stage, Err: err}
	}

	rec, err := s.catalog.Lookup(sub.ModelID)
	if err != nil {
		return fail(StageValidated, err)
	}
	reached = StageValidated

	var img *imaging.Image
	if sub.Image != nil {
		img, err = s.normalizer.Normalize(sub.Image)
		if err != nil {
			return fail(StageImageNormalized, err)
		}
		reached = StageImageNormalized
	}

	est, err := s.predictor.Predict(model.Features{
		Year:    sub.Year,
		Mileage: sub.Mileage,
		Make:    rec.Make,
		Model:   rec.Model,
	})
	if err != nil {
		return fail(StagePredicted, err)
	}

	s.observe(StageCompleted, false, start)
	slog.InfoContext(ctx, "Estimate completed",
		"make", rec.Make,
		"model", rec.Model,
		"year", sub.Year,
		"mileage", sub.Mileage,
		"price", est.Value,
		"image", img != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Make:  rec.Make,
		Model: rec.Model,
		Price: est.Value,
		Image: img,
		Stage: StageCompleted,
	}, nil
}

func (s *Service) observe(stage Stage, failed bool, start time.Time) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveEstimate(string(stage), failed, time.Since(start))
}
