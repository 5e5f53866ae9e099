package athena

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/smithy-go"
)

// transientCodes are API error codes worth another poll.
var transientCodes = map[string]struct{}{
	"ThrottlingException":      {},
	"Throttling":               {},
	"TooManyRequestsException": {},
	"InternalServerException":  {},
	"ServiceUnavailable":       {},
	"RequestTimeout":           {},
	"RequestTimeoutException":  {},
}

// isTransient reports whether a poll error is worth retrying. Errors that
// never reached the service (no API error code) count as transport hiccups.
func isTransient(err error) bool {
	var tooMany *types.TooManyRequestsException
	if errors.As(err, &tooMany) {
		return true
	}
	var internal *types.InternalServerException
	if errors.As(err, &internal) {
		return true
	}
	var invalid *types.InvalidRequestException
	if errors.As(err, &invalid) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		_, ok := transientCodes[apiErr.ErrorCode()]
		return ok || apiErr.ErrorFault() == smithy.FaultServer
	}
	return true
}
