package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

var (
	// ErrLoad reports a missing artifact or one that fails manifest checks.
	ErrLoad = errors.New("price model load failed")

	// ErrPrediction reports features that do not fit the artifact's schema
	// or an inference failure.
	ErrPrediction = errors.New("price prediction failed")
)

// regressor runs one encoded input row and returns the scalar output.
type regressor interface {
	Run(input []float32) (float32, error)
	Close() error
}

// Options configures backends that need process-level setup.
type Options struct {
	// ONNXLibraryPath overrides the onnxruntime shared library location.
	ONNXLibraryPath string
}

// Predictor wraps a loaded artifact. It is read-only after Load and may be
// used from many goroutines.
type Predictor struct {
	manifest Manifest
	width    int
	backend  regressor
}

// Load reads the manifest at path and opens the backend it names.
func Load(path string, opts Options) (*Predictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %v", ErrLoad, err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", ErrLoad, err)
	}

	width, err := manifest.validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	var backend regressor
	switch manifest.Format {
	case FormatLinear:
		backend, err = newLinear(manifest, width)
	case FormatONNX:
		modelPath := manifest.ModelFile
		if !filepath.IsAbs(modelPath) {
			modelPath = filepath.Join(filepath.Dir(path), modelPath)
		}
		backend, err = newONNX(modelPath, manifest, width, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	return &Predictor{manifest: manifest, width: width, backend: backend}, nil
}

// Manifest returns a copy of the validated manifest. Changing the copy does
// not affect predictions.
func (p *Predictor) Manifest() Manifest {
	m := p.manifest
	m.Features = make([]FeatureSpec, len(p.manifest.Features))
	for i, f := range p.manifest.Features {
		f.Categories = append([]string(nil), f.Categories...)
		m.Features[i] = f
	}
	m.Weights = append([]float64(nil), p.manifest.Weights...)
	return m
}

// Width is the length of an encoded input row.
func (p *Predictor) Width() int {
	return p.width
}

// Predict encodes f against the manifest and runs the backend.
func (p *Predictor) Predict(f Features) (Estimate, error) {
	input, err := p.Encode(f)
	if err != nil {
		return Estimate{}, err
	}

	out, err := p.backend.Run(input)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrPrediction, err)
	}

	value := float64(out)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Estimate{}, fmt.Errorf("%w: non-finite output %v", ErrPrediction, out)
	}

	return Estimate{Value: value}, nil
}

// Encode lays out f as one model input row.
func (p *Predictor) Encode(f Features) ([]float32, error) {
	row := make([]float32, 0, p.width)

	for _, spec := range p.manifest.Features {
		switch spec.Kind {
		case KindNumeric:
			switch spec.Name {
			case "year":
				row = append(row, float32(f.Year))
			case "mileage":
				row = append(row, float32(f.Mileage))
			}
		case KindCategorical:
			value := f.Make
			if spec.Name == "model" {
				value = f.Model
			}
			block := make([]float32, len(spec.Categories))
			found := false
			for i, c := range spec.Categories {
				if c == value {
					block[i] = 1
					found = true
					break
				}
			}
			if !found && p.manifest.HandleUnknown != UnknownIgnore {
				return nil, fmt.Errorf("%w: %s %q is not a known category", ErrPrediction, spec.Name, value)
			}
			row = append(row, block...)
		}
	}

	if len(row) != p.width {
		return nil, fmt.Errorf("%w: encoded %d values, artifact expects %d", ErrPrediction, len(row), p.width)
	}

	return row, nil
}

func (p *Predictor) Close() error {
	if p.backend == nil {
		return nil
	}
	return p.backend.Close()
}

// validate checks the manifest and returns the encoded row width.
func (m *Manifest) validate() (int, error) {
	switch m.Format {
	case FormatONNX:
		if m.ModelFile == "" {
			return 0, errors.New("onnx manifest has no model_file")
		}
	case FormatLinear:
	default:
		return 0, fmt.Errorf("unknown format %q", m.Format)
	}

	switch m.HandleUnknown {
	case "":
		m.HandleUnknown = UnknownError
	case UnknownError, UnknownIgnore:
	default:
		return 0, fmt.Errorf("unknown handle_unknown policy %q", m.HandleUnknown)
	}

	if len(m.Features) == 0 {
		return 0, errors.New("manifest lists no features")
	}

	seen := make(map[string]bool)
	width := 0
	for _, f := range m.Features {
		if seen[f.Name] {
			return 0, fmt.Errorf("feature %q listed twice", f.Name)
		}
		seen[f.Name] = true

		switch {
		case f.Kind == KindNumeric && (f.Name == "year" || f.Name == "mileage"):
			width++
		case f.Kind == KindCategorical && (f.Name == "make" || f.Name == "model"):
			if len(f.Categories) == 0 {
				return 0, fmt.Errorf("categorical feature %q has no categories", f.Name)
			}
			width += len(f.Categories)
		default:
			return 0, fmt.Errorf("unsupported feature %q of kind %q", f.Name, f.Kind)
		}
	}

	return width, nil
}
