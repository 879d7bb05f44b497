// Package config reads process settings from the environment and an
// optional .env file. Nothing outside this package reads the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	LogLevel    string
	CatalogPath string

	// ArtifactPath is the resolved location of the price model manifest.
	ArtifactPath    string
	RunID           string
	ONNXLibraryPath string

	ImageMaxWidth  int
	ImageMaxHeight int
	ImageUpscale   bool
	ImageMaxPixels int64
	JPEGQuality    int
	MaxUploadBytes int64
}

// Load reads .env if present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary key lookup.
func FromLookup(lookup func(string) (string, bool)) *Config {
	get := func(key, fallback string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return fallback
	}

	cfg := &Config{
		Port:            get("PORT", "8080"),
		LogLevel:        get("LOG_LEVEL", "info"),
		CatalogPath:     get("CATALOG_PATH", filepath.Join("data", "car_models.json")),
		ONNXLibraryPath: get("ONNXRUNTIME_LIB", ""),
		ImageMaxWidth:   atoi(get("IMAGE_MAX_WIDTH", ""), 640),
		ImageMaxHeight:  atoi(get("IMAGE_MAX_HEIGHT", ""), 480),
		ImageUpscale:    parseBool(get("IMAGE_UPSCALE", ""), false),
		ImageMaxPixels:  int64(atoi(get("IMAGE_MAX_MEGAPIXELS", ""), 40)) * 1_000_000,
		JPEGQuality:     atoi(get("JPEG_QUALITY", ""), 90),
		MaxUploadBytes:  int64(atoi(get("MAX_UPLOAD_MB", ""), 10)) << 20,
	}

	cfg.RunID, cfg.ArtifactPath = ResolveArtifact(
		get("ARTIFACT_PATH", ""),
		get("ARTIFACT_DIR", "/media/data"),
		get("GITHUB_RUN_ID", ""),
	)

	return cfg
}

// ResolveArtifact picks the model manifest location. An explicit path wins;
// otherwise the manifest is <dir>/<runID>.json, with a fresh UUID standing in
// for a missing run id.
func ResolveArtifact(explicit, dir, runID string) (string, string) {
	if runID == "" {
		runID = uuid.NewString()
	}
	if explicit != "" {
		return runID, explicit
	}
	return runID, filepath.Join(dir, runID+".json")
}

func atoi(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid integer setting", "value", s, "default", fallback)
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return b
}
