package ports

import "github.com/reglet-dev/capkit/domain/entities"

// ManifestParser parses raw manifest bytes into a Manifest.
type ManifestParser interface {
	Parse(data []byte) (*entities.Manifest, error)
}
