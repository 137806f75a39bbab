package relay

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized means the shared-secret header did not match.
	ErrUnauthorized = errors.New("invalid webhook token")

	// ErrAuthRequired means no usable ContaAzul credential exists; the
	// operator must complete the flow at /oauth/authorize.
	ErrAuthRequired = errors.New("no valid ContaAzul token, authorize at /oauth/authorize")

	// ErrMissingReference means the event lacks externalReference, which
	// carries the installment id.
	ErrMissingReference = errors.New("externalReference missing (expected parcela id)")
)

// UpstreamError is a non-2xx settlement reply; the downstream body is carried
// verbatim so the webhook caller can see it.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("conta azul returned %d: %s", e.StatusCode, e.Body)
}
