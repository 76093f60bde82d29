package tableapi

import (
	"errors"

	"connectrpc.com/connect"
	"mangrobe.dev/streamsource/connectors"
)

// ErrMalformedResponse reports a response that violates the service protocol.
var ErrMalformedResponse = errors.New("malformed table service response")

// ErrorFrom classifies a table service error as retryable or terminal.
// Requests the server rejects won't succeed on retry; everything else
// (unavailable, deadlines, transport failures) is assumed transient.
func ErrorFrom(err error) *connectors.SourceError {
	switch connect.CodeOf(err) {
	case connect.CodeInvalidArgument,
		connect.CodeNotFound,
		connect.CodePermissionDenied,
		connect.CodeUnauthenticated,
		connect.CodeUnimplemented:
		return connectors.NewTerminalError(err)
	default:
		return connectors.NewRetryableError(err)
	}
}
