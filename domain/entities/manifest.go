package entities

// Manifest is a discovery manifest declaring the capabilities to register.
type Manifest struct {
	Capabilities []ManifestEntry `json:"capabilities" yaml:"capabilities" validate:"dive"`
}

// ManifestEntry maps one capability identifier to a constructible implementation.
type ManifestEntry struct {
	// Config is passed to the provider, e.g. {"path": "plugins/hello.wasm"} for wasm entries.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`

	ID          string `json:"id" yaml:"id" validate:"required"`
	EntryPoint  string `json:"entry_point" yaml:"entry_point" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Runtime     string `json:"runtime,omitempty" yaml:"runtime,omitempty" validate:"omitempty,oneof=native wasm"`
}

// RuntimeOrDefault returns the declared runtime, defaulting to native.
func (e ManifestEntry) RuntimeOrDefault() string {
	if e.Runtime == "" {
		return RuntimeNative
	}
	return e.Runtime
}
