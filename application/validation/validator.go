// Package validation checks function results against their declared output
// contracts (JSON Schema documents).
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ContractError reports data that does not satisfy an output contract.
type ContractError struct {
	Key        string
	Violations []string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("result of %s violates its output contract: %s", e.Key, strings.Join(e.Violations, "; "))
}

// ResultValidator validates data against JSON Schema contracts. Compiled
// schemas are cached per key and contract; it is safe for concurrent use.
type ResultValidator struct {
	cache map[string]*jsonschema.Schema
	mu    sync.Mutex
}

// NewResultValidator creates a validator with an empty cache.
func NewResultValidator() *ResultValidator {
	return &ResultValidator{cache: make(map[string]*jsonschema.Schema)}
}

// Validate checks data against contract. key names the contract in errors,
// e.g. "community:hello.greet". An empty contract accepts anything.
func (v *ResultValidator) Validate(key string, contract json.RawMessage, data any) error {
	if len(bytes.TrimSpace(contract)) == 0 {
		return nil
	}

	sch, err := v.compile(key, contract)
	if err != nil {
		return err
	}

	// Round-trip through JSON so the validator sees the same shapes a remote
	// caller would.
	b, err := json.Marshal(data)
	if err != nil {
		return &ContractError{Key: key, Violations: []string{fmt.Sprintf("result is not JSON-serializable: %v", err)}}
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to prepare validation object: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &ContractError{Key: key, Violations: violations(ve)}
		}
		return &ContractError{Key: key, Violations: []string{err.Error()}}
	}
	return nil
}

func (v *ResultValidator) compile(key string, contract json.RawMessage) (*jsonschema.Schema, error) {
	cacheKey := key + "\x00" + string(contract)

	v.mu.Lock()
	defer v.mu.Unlock()
	if sch, ok := v.cache[cacheKey]; ok {
		return sch, nil
	}

	resource := "mem://contracts/" + url.PathEscape(key) + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(resource, bytes.NewReader(contract)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource for %s: %w", key, err)
	}
	sch, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("invalid output contract for %s: %w", key, err)
	}
	v.cache[cacheKey] = sch
	return sch, nil
}

func violations(ve *jsonschema.ValidationError) []string {
	var out []string
	for _, e := range ve.BasicOutput().Errors {
		if e.Error == "" || strings.HasPrefix(e.Error, "doesn't validate with") {
			continue
		}
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, loc+": "+e.Error)
	}
	if len(out) == 0 {
		out = append(out, ve.Error())
	}
	return out
}
