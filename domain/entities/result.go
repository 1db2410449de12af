package entities

// StepResult is the outcome of one dispatch call. Exactly one of Data and Error
// is authoritative: a nil Error means success.
type StepResult struct {
	Data      any            `json:"data"`
	Error     *ErrorInfo     `json:"error"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
}

// Artifact references a file produced by a function.
type Artifact struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Success creates a successful StepResult carrying data unchanged.
func Success(data any) *StepResult {
	return &StepResult{Data: data}
}

// Failure creates a failed StepResult.
func Failure(info *ErrorInfo) *StepResult {
	return &StepResult{Error: info}
}

// IsSuccess reports whether the result carries no error.
func (r *StepResult) IsSuccess() bool {
	return r != nil && r.Error == nil
}

// Kind returns the error kind, or "" for a successful result.
func (r *StepResult) Kind() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return r.Error.Kind
}

// WithMetadata sets a metadata entry and returns the receiver.
func (r *StepResult) WithMetadata(key string, value any) *StepResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
	return r
}

// MergeMetadata adds entries from m. Existing keys are kept.
func (r *StepResult) MergeMetadata(m map[string]any) *StepResult {
	for k, v := range m {
		if _, exists := r.Metadata[k]; exists {
			continue
		}
		r.WithMetadata(k, v)
	}
	return r
}

// WithArtifact appends an artifact and returns the receiver.
func (r *StepResult) WithArtifact(path, typ string) *StepResult {
	r.Artifacts = append(r.Artifacts, Artifact{Path: path, Type: typ})
	return r
}
