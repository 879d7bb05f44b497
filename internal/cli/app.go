package cli

import (
	"context"
	"log/slog"

	"github.com/Brownie44l1/carprice-api/internal/catalog"
	"github.com/Brownie44l1/carprice-api/internal/config"
	"github.com/Brownie44l1/carprice-api/internal/estimate"
	"github.com/Brownie44l1/carprice-api/internal/imaging"
	"github.com/Brownie44l1/carprice-api/internal/metrics"
	"github.com/Brownie44l1/carprice-api/internal/model"
)

// app holds everything loaded once at startup.
type app struct {
	catalog   *catalog.Catalog
	predictor *model.Predictor
	service   *estimate.Service
}

// loadApp loads the catalog and the price model. Either failing is fatal to
// the caller; no requests may be served without both.
func loadApp(ctx context.Context, cfg *config.Config, rec *metrics.Recorder) (*app, error) {
	slog.Info("Loading catalog", "path", cfg.CatalogPath)
	cat, err := catalog.LoadFile(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	slog.Info("Loading price model", "path", cfg.ArtifactPath, "run_id", cfg.RunID)
	predictor, err := model.Load(cfg.ArtifactPath, model.Options{ONNXLibraryPath: cfg.ONNXLibraryPath})
	if err != nil {
		return nil, err
	}

	normalizer := imaging.NewNormalizer(imaging.Options{
		MaxWidth:  cfg.ImageMaxWidth,
		MaxHeight: cfg.ImageMaxHeight,
		Quality:   cfg.JPEGQuality,
		Upscale:   cfg.ImageUpscale,
		MaxPixels: cfg.ImageMaxPixels,
	})

	slog.Info("Startup complete",
		"models", cat.Len(),
		"format", predictor.Manifest().Format,
		"features", predictor.Width(),
	)

	return &app{
		catalog:   cat,
		predictor: predictor,
		service:   estimate.NewService(cat, normalizer, predictor, rec),
	}, nil
}

func (a *app) Close() {
	if err := a.predictor.Close(); err != nil {
		slog.Warn("Failed to release price model", "error", err)
	}
}
