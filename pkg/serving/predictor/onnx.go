package predictor

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
	ortLib  string
)

// SetRuntimeLibrary sets the onnxruntime shared library used by LoadONNX.
// It must be called before the first ONNX artifact is opened.
func SetRuntimeLibrary(path string) {
	ortLib = path
}

func initRuntime() error {
	ortOnce.Do(func() {
		if ortLib != "" {
			ort.SetSharedLibraryPath(ortLib)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ShutdownRuntime releases the onnxruntime environment if it was started.
func ShutdownRuntime() error {
	if ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}

// ONNXModel runs an exported classifier through onnxruntime.
type ONNXModel struct {
	path    string
	width   int
	session *ort.DynamicAdvancedSession
}

func LoadONNX(path string, features []string, opts Options) (*ONNXModel, error) {
	if opts.InputName == "" {
		opts.InputName = "float_input"
	}
	if opts.OutputName == "" {
		opts.OutputName = "label"
	}
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime: %w", err)
	}

	inputs, _, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}
	found := false
	for _, in := range inputs {
		if in.Name != opts.InputName {
			continue
		}
		found = true
		dims := in.Dimensions
		if len(dims) == 2 && dims[1] > 0 && int(dims[1]) != len(features) {
			return nil, fmt.Errorf("artifact %s: %w: input width %d, panel has %d", path, ErrFeatureMismatch, dims[1], len(features))
		}
	}
	if !found {
		return nil, fmt.Errorf("artifact %s: no input named %q", path, opts.InputName)
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{opts.InputName}, []string{opts.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &ONNXModel{path: path, width: len(features), session: session}, nil
}

func (m *ONNXModel) Classify(ctx context.Context, features []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(features) != m.width {
		return 0, fmt.Errorf("sample has %d values, model expects %d", len(features), m.width)
	}
	row := make([]float32, len(features))
	for i, v := range features {
		row[i] = float32(v)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(m.width)), row)
	if err != nil {
		return 0, fmt.Errorf("build input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		return 0, fmt.Errorf("build output tensor: %w", err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return 0, fmt.Errorf("run %s: %w", m.path, err)
	}
	labels := output.GetData()
	if len(labels) == 0 {
		return 0, fmt.Errorf("run %s: empty label output", m.path)
	}
	return int(labels[0]), nil
}

func (m *ONNXModel) Kind() string { return "onnx" }

// Close releases the onnxruntime session.
func (m *ONNXModel) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
