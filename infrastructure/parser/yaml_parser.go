// Package parser decodes discovery manifests.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/ports"
	"gopkg.in/yaml.v3"
)

// ErrEmptyManifest is returned for a manifest without any document.
var ErrEmptyManifest = errors.New("manifest is empty")

// YamlManifestParser implements ports.ManifestParser for YAML. JSON manifests
// parse too, being valid YAML. Unknown keys are rejected.
type YamlManifestParser struct{}

// NewYamlManifestParser creates a new YamlManifestParser.
func NewYamlManifestParser() ports.ManifestParser {
	return &YamlManifestParser{}
}

// Parse decodes data into a Manifest.
func (p *YamlManifestParser) Parse(data []byte) (*entities.Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var manifest entities.Manifest
	if err := dec.Decode(&manifest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyManifest
		}
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &manifest, nil
}
