// Package wazero binds host functions to the wazero WebAssembly runtime and
// implements the guest memory ABI.
//
// Values cross the boundary as a packed i64: the upper 32 bits hold a pointer
// into guest linear memory and the lower 32 bits the length. Guests export
// "allocate" so the host can place responses in their memory.
//
//	registry, err := hostfuncs.NewRegistry(
//	    hostfuncs.WithBundle(hostfuncs.SecretsBundle(nil)),
//	)
//	if err != nil {
//	    return err
//	}
//	runtime := wazero.NewRuntime(ctx)
//	err = capwazero.RegisterWithRuntime(ctx, runtime, registry)
//
// Handlers that do not follow the request/response pattern, such as
// log_message, are added with WithCustomHandler.
package wazero
