package bot

import (
	"context"

	"github.com/inevity/zhibot/auth"
)

// DeniedMessage is the text shown to callers that are not authorized.
const DeniedMessage = "没有访问授权！"

// Failure is a request that did not produce a handler result.
type Failure int

const (
	FailureDenied Failure = iota
	FailureServiceError
)

func (f Failure) String() string {
	switch f {
	case FailureDenied:
		return "denied"
	case FailureServiceError:
		return "service_error"
	default:
		return "unknown"
	}
}

// Handler interprets one platform's payloads and formats its replies. The PayloadReader methods
// must be pure: they are called before authorization, on untrusted input.
type Handler interface {
	auth.PayloadReader

	// OAuthCapable reports whether the platform links accounts through OAuth and sends the
	// resulting access token in every payload.
	OAuthCapable() bool

	// Handle acts on an authorized payload.
	Handle(ctx context.Context, payload []byte) (any, error)

	// Respond shapes a Handle result into the platform's response body.
	Respond(payload []byte, result any) any

	// Fail shapes a denial or service error into the platform's response body.
	Fail(payload []byte, failure Failure, message string) any
}
