package hostfuncs

import (
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/capkit/wireformat"
)

// Error kinds returned to guests.
const (
	KindInvalidRequest = "InvalidRequest"
	KindNotFound       = "NotFound"
	KindHostFault      = "HostFault"
)

// ErrorResponse is the envelope for errors returned to guests in place of a
// handler response.
type ErrorResponse struct {
	Error wireformat.ErrorWire `json:"error"`
}

// ToJSON serializes the response.
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

func newErrorResponse(kind, message string) ErrorResponse {
	return ErrorResponse{Error: wireformat.ErrorWire{Kind: kind, Message: message}}
}

// NewInvalidRequestError reports a request the host could not accept.
func NewInvalidRequestError(message string) ErrorResponse {
	return newErrorResponse(KindInvalidRequest, message)
}

// NewNotFoundError reports an unknown host function name.
func NewNotFoundError(name string) ErrorResponse {
	return newErrorResponse(KindNotFound, "unknown host function: "+name)
}

// NewHostFaultError reports an unexpected failure inside the host.
func NewHostFaultError(message string) ErrorResponse {
	return newErrorResponse(KindHostFault, message)
}

// NewPanicError reports a recovered panic.
func NewPanicError(p any) ErrorResponse {
	return newErrorResponse(KindHostFault, fmt.Sprintf("panic: %v", p))
}
