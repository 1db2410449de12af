package entities

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidCapabilityID is returned when an identifier is not of the form "<namespace>:<name>".
var ErrInvalidCapabilityID = errors.New("invalid capability identifier")

var idPart = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// CapabilityID identifies a capability. It has the form "<namespace>:<name>",
// e.g. "community:hello".
type CapabilityID string

// ParseCapabilityID validates s and returns it as a CapabilityID.
func ParseCapabilityID(s string) (CapabilityID, error) {
	id := CapabilityID(s)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// MustParseCapabilityID is like ParseCapabilityID but panics on error.
func MustParseCapabilityID(s string) CapabilityID {
	id, err := ParseCapabilityID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Validate checks that both the namespace and name are present and use only
// lower-case letters, digits, '.', '_' and '-'.
func (id CapabilityID) Validate() error {
	ns, name, ok := strings.Cut(string(id), ":")
	if !ok {
		return fmt.Errorf("%w %q: missing namespace separator", ErrInvalidCapabilityID, string(id))
	}
	if !idPart.MatchString(ns) {
		return fmt.Errorf("%w %q: bad namespace", ErrInvalidCapabilityID, string(id))
	}
	if !idPart.MatchString(name) {
		return fmt.Errorf("%w %q: bad name", ErrInvalidCapabilityID, string(id))
	}
	return nil
}

// Namespace returns the part before the colon.
func (id CapabilityID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ":")
	return ns
}

// Name returns the part after the colon.
func (id CapabilityID) Name() string {
	_, name, _ := strings.Cut(string(id), ":")
	return name
}

func (id CapabilityID) String() string {
	return string(id)
}
