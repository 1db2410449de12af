package hostfuncs

import (
	"context"

	"github.com/reglet-dev/capkit/runctx"
	"github.com/reglet-dev/capkit/wireformat"
)

// Host function names.
const (
	FuncSecretGet  = "secret_get"
	FuncLogMessage = "log_message"
)

// Bundle is a pre-configured set of related host functions.
type Bundle interface {
	Handlers() map[string]ByteHandler
}

type staticBundle map[string]ByteHandler

func (b staticBundle) Handlers() map[string]ByteHandler {
	return b
}

// SecretsBundle exposes secret_get. Secrets are resolved through the services
// of the calling run context; fallback is used when the call carries none.
func SecretsBundle(fallback runctx.SecretService) Bundle {
	return staticBundle{
		FuncSecretGet: NewJSONHandler(func(ctx context.Context, req wireformat.SecretRequestWire) wireformat.SecretResponseWire {
			return getSecret(ctx, fallback, req)
		}),
	}
}

func getSecret(ctx context.Context, fallback runctx.SecretService, req wireformat.SecretRequestWire) wireformat.SecretResponseWire {
	svc := fallback
	if rc, ok := runctx.FromContext(ctx); ok {
		svc = rc.Secrets()
	}
	if svc == nil {
		return secretError(KindNotFound, runctx.ErrNoSecrets.Error())
	}
	if req.Provider == "" {
		return secretError(KindInvalidRequest, "provider is required")
	}

	if req.Key == "" {
		values, err := svc.GetAll(ctx, req.Provider)
		if err != nil {
			return secretError(KindNotFound, err.Error())
		}
		return wireformat.SecretResponseWire{Values: values}
	}

	value, err := svc.Get(ctx, req.Provider, req.Key)
	if err != nil {
		return secretError(KindNotFound, err.Error())
	}
	return wireformat.SecretResponseWire{Value: value}
}

func secretError(kind, msg string) wireformat.SecretResponseWire {
	return wireformat.SecretResponseWire{Error: &wireformat.ErrorWire{Kind: kind, Message: msg}}
}
