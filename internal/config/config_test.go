package config

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg := FromLookup(lookupFrom(nil))

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ImageMaxWidth != 640 || cfg.ImageMaxHeight != 480 {
		t.Errorf("box = %dx%d, want 640x480", cfg.ImageMaxWidth, cfg.ImageMaxHeight)
	}
	if cfg.ImageUpscale {
		t.Error("ImageUpscale defaults to true")
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d, want 10MB", cfg.MaxUploadBytes)
	}
	if cfg.ImageMaxPixels != 40_000_000 {
		t.Errorf("ImageMaxPixels = %d, want 40MP", cfg.ImageMaxPixels)
	}
	if _, err := uuid.Parse(cfg.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID: %v", cfg.RunID, err)
	}
	if cfg.ArtifactPath != filepath.Join("/media/data", cfg.RunID+".json") {
		t.Errorf("ArtifactPath = %q", cfg.ArtifactPath)
	}
}

func TestFromLookupOverrides(t *testing.T) {
	cfg := FromLookup(lookupFrom(map[string]string{
		"PORT":                 "9000",
		"GITHUB_RUN_ID":        "12345",
		"ARTIFACT_DIR":         "/models",
		"IMAGE_MAX_WIDTH":      "800",
		"IMAGE_MAX_HEIGHT":     "nope",
		"IMAGE_UPSCALE":        "true",
		"MAX_UPLOAD_MB":        "2",
		"IMAGE_MAX_MEGAPIXELS": "12",
	}))

	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.ArtifactPath != filepath.Join("/models", "12345.json") {
		t.Errorf("ArtifactPath = %q", cfg.ArtifactPath)
	}
	if cfg.ImageMaxWidth != 800 || cfg.ImageMaxHeight != 480 {
		t.Errorf("box = %dx%d, want 800x480", cfg.ImageMaxWidth, cfg.ImageMaxHeight)
	}
	if !cfg.ImageUpscale {
		t.Error("ImageUpscale not applied")
	}
	if cfg.MaxUploadBytes != 2<<20 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.ImageMaxPixels != 12_000_000 {
		t.Errorf("ImageMaxPixels = %d", cfg.ImageMaxPixels)
	}
}

func TestResolveArtifact(t *testing.T) {
	runID, path := ResolveArtifact("/explicit/model.json", "/media/data", "77")
	if runID != "77" || path != "/explicit/model.json" {
		t.Errorf("explicit: got %q %q", runID, path)
	}

	runID, path = ResolveArtifact("", "/media/data", "")
	if _, err := uuid.Parse(runID); err != nil {
		t.Fatalf("fallback run id %q: %v", runID, err)
	}
	if path != filepath.Join("/media/data", runID+".json") {
		t.Errorf("fallback path = %q", path)
	}

	other, _ := ResolveArtifact("", "/media/data", "")
	if other == runID {
		t.Error("fallback run ids repeat")
	}
}
