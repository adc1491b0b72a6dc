package anthropic

import (
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// TransportError signals that the extraction backend call did not
// complete successfully: a non-2xx API response or a network-level
// failure. StatusCode is 0 when no HTTP response was received. The
// client never retries; whether to try again is the caller's call.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("anthropic: transport failure: %v", e.Err)
	}
	return fmt.Sprintf("anthropic: backend returned status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// asTransportError classifies an SDK error, pulling the HTTP status and
// response body out of API errors. Anything else (DNS failure, timeout,
// connection reset) carries status 0 and the error text as body.
func asTransportError(err error) *TransportError {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		body := apierr.RawJSON()
		if body == "" {
			body = apierr.Error()
		}
		return &TransportError{StatusCode: apierr.StatusCode, Body: body, Err: err}
	}
	return &TransportError{Body: err.Error(), Err: err}
}
