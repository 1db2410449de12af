// Package hostfuncs implements the functions the host exposes to WASM-backed
// capabilities. Handlers exchange JSON payloads and have no dependency on a
// particular WASM runtime; the wazero adapter binds them to guest imports.
package hostfuncs
