// Package entities provides the core domain types of the dispatch protocol:
// capability identifiers, function signatures, step results and advertisements.
package entities
