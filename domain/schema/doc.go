// Package schema describes the parameter sets advertised by capability functions
// and validates raw caller input against them.
//
// A Schema is an ordered list of Fields. Validation is pure: it never mutates the
// raw input, never calls into a capability and always reports every field-level
// problem it finds rather than stopping at the first one.
package schema
