package model

// Backend formats a manifest may name.
const (
	FormatONNX   = "onnx"
	FormatLinear = "linear"
)

// Feature kinds.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
)

// Unknown category policies.
const (
	UnknownError  = "error"
	UnknownIgnore = "ignore"
)

// Manifest describes a trained price artifact: which backend runs it and
// how a feature vector is laid out as model input.
type Manifest struct {
	Format        string        `json:"format"`
	ModelFile     string        `json:"model_file,omitempty"`
	InputName     string        `json:"input_name,omitempty"`
	OutputName    string        `json:"output_name,omitempty"`
	Features      []FeatureSpec `json:"features"`
	HandleUnknown string        `json:"handle_unknown,omitempty"`
	Intercept     float64       `json:"intercept,omitempty"`
	Weights       []float64     `json:"weights,omitempty"`
}

// FeatureSpec is one input column. Categorical columns expand into a one-hot
// block with one slot per category.
type FeatureSpec struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Categories []string `json:"categories,omitempty"`
}

// Features is the input to one prediction.
type Features struct {
	Year    int    `json:"year"`
	Mileage int    `json:"mileage"`
	Make    string `json:"make"`
	Model   string `json:"model"`
}

// Estimate is a point price prediction.
type Estimate struct {
	Value float64 `json:"value"`
}
