// Package ports defines the interfaces at the edges of the dispatch core.
// Capabilities implement Capability; infrastructure adapters implement the
// storage, parsing and templating ports.
package ports
