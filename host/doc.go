// Package host wires capabilities into a running orchestrator.
//
// Loader turns a discovery manifest into registry entries. Native entries
// are looked up by entry point in a Providers table; WASM entries are
// compiled with wazero and adapted to the capability contract by
// WASMCapability, which talks to the guest through its "describe" and
// "execute" exports.
package host
