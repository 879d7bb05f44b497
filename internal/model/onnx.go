package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// envRefs counts the sessions sharing the process-wide onnxruntime
// environment. The environment is set up by the first acquire and torn
// down when the last session releases it.
type envRefs struct {
	mu      sync.Mutex
	users   int
	init    func(libraryPath string) error
	destroy func() error
}

var ortEnv = &envRefs{
	init: func(libraryPath string) error {
		if ort.IsInitialized() {
			return nil
		}
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		return ort.InitializeEnvironment()
	},
	destroy: func() error {
		if !ort.IsInitialized() {
			return nil
		}
		return ort.DestroyEnvironment()
	},
}

func (e *envRefs) acquire(libraryPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.users == 0 {
		if err := e.init(libraryPath); err != nil {
			return err
		}
	}
	e.users++
	return nil
}

func (e *envRefs) release() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.users == 0 {
		return nil
	}
	e.users--
	if e.users == 0 {
		return e.destroy()
	}
	return nil
}

// onnxRegressor runs an ONNX graph with one float32 input of shape
// [1, width] and one float32 output whose first element is the price.
// Tensors are created per call so a single session serves concurrent
// requests.
type onnxRegressor struct {
	session    *ort.DynamicAdvancedSession
	inputShape ort.Shape
}

func newONNX(modelPath string, m Manifest, width int, opts Options) (*onnxRegressor, error) {
	if err := ortEnv.acquire(opts.ONNXLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputName := m.InputName
	if inputName == "" {
		inputName = "input"
	}
	outputName := m.OutputName
	if outputName == "" {
		outputName = "output"
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName}, nil)
	if err != nil {
		ortEnv.release()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxRegressor{
		session:    session,
		inputShape: ort.NewShape(1, int64(width)),
	}, nil
}

func (r *onnxRegressor) Run(input []float32) (float32, error) {
	inputTensor, err := ort.NewTensor(r.inputShape, input)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return 0, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := r.session.Run(
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
	); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	out := outputTensor.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("model produced no output")
	}
	return out[0], nil
}

// Close destroys the session and drops its hold on the shared environment.
// Calling it more than once is a no-op.
func (r *onnxRegressor) Close() error {
	if r.session == nil {
		return nil
	}
	err := r.session.Destroy()
	r.session = nil
	if relErr := ortEnv.release(); err == nil {
		err = relErr
	}
	return err
}
