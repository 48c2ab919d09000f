package githubcli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
)

const (
	apiErrorMessageUnavailableConstant   = "no error message returned"
	apiErrorMessageLengthLimitConstant   = 512
	apiErrorMessageEllipsisConstant      = "…"
	rateLimitSnapshotUnavailableConstant = "unknown"
	rateLimitDisplayTemplateConstant     = "%d/%d (resets %s)"
)

// RateLimit is the primary rate-limit state reported by the most recent response.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// String formats the snapshot for display.
func (rateLimit RateLimit) String() string {
	if rateLimit.Reset.IsZero() {
		return rateLimitSnapshotUnavailableConstant
	}
	return fmt.Sprintf(rateLimitDisplayTemplateConstant, rateLimit.Remaining, rateLimit.Limit, rateLimit.Reset.UTC().Format(time.RFC3339))
}

// rateLimitOf converts the rate parsed by go-github. The boolean is false when the
// response carried no reset header.
func rateLimitOf(response *github.Response) (RateLimit, bool) {
	if response == nil || response.Rate.Reset.Time.IsZero() {
		return RateLimit{}, false
	}
	return RateLimit{
		Limit:     response.Rate.Limit,
		Remaining: response.Rate.Remaining,
		Reset:     response.Rate.Reset.Time.UTC(),
	}, true
}

// classifyRequestError maps go-github failures onto the package's typed errors.
func classifyRequestError(operation OperationName, requestError error) error {
	var abuseError *github.AbuseRateLimitError
	if errors.As(requestError, &abuseError) {
		var retryAfter time.Duration
		if abuseError.RetryAfter != nil && *abuseError.RetryAfter > 0 {
			retryAfter = *abuseError.RetryAfter
		}
		return OperationError{Operation: operation, Cause: SecondaryRateLimitError{
			StatusCode: statusCodeOf(abuseError.Response),
			Message:    abuseError.Message,
			RetryAfter: retryAfter,
		}}
	}

	var primaryError *github.RateLimitError
	if errors.As(requestError, &primaryError) {
		return OperationError{Operation: operation, Cause: APIError{StatusCode: statusCodeOf(primaryError.Response), Message: primaryError.Message}}
	}

	var errorResponse *github.ErrorResponse
	if errors.As(requestError, &errorResponse) {
		return OperationError{Operation: operation, Cause: APIError{StatusCode: statusCodeOf(errorResponse.Response), Message: errorMessageOf(errorResponse)}}
	}

	var malformedError malformedResponseError
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	if errors.As(requestError, &malformedError) || errors.As(requestError, &syntaxError) || errors.As(requestError, &typeError) {
		return ResponseDecodingError{Operation: operation, Cause: requestError}
	}

	return OperationError{Operation: operation, Cause: requestError}
}

func statusCodeOf(response *http.Response) int {
	if response == nil {
		return 0
	}
	return response.StatusCode
}

// errorMessageOf prefers the JSON message and falls back to the raw body, which
// CheckResponse leaves readable.
func errorMessageOf(errorResponse *github.ErrorResponse) string {
	if len(strings.TrimSpace(errorResponse.Message)) > 0 {
		return errorResponse.Message
	}
	if errorResponse.Response == nil || errorResponse.Response.Body == nil {
		return apiErrorMessageUnavailableConstant
	}
	body, readError := io.ReadAll(errorResponse.Response.Body)
	if readError != nil {
		return apiErrorMessageUnavailableConstant
	}

	trimmedBody := strings.TrimSpace(string(body))
	if len(trimmedBody) == 0 {
		return apiErrorMessageUnavailableConstant
	}
	if len(trimmedBody) > apiErrorMessageLengthLimitConstant {
		return strings.ToValidUTF8(trimmedBody[:apiErrorMessageLengthLimitConstant], "") + apiErrorMessageEllipsisConstant
	}
	return trimmedBody
}
