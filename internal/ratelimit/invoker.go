package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/temirov/issuemigrate/internal/githubcli"
)

const (
	rateLimitSourceNotConfiguredMessageConstant = "rate limit source not configured"
	invalidMaximumAttemptsTemplateConstant      = "maximum attempts must be at least 1, got %d"
	invalidPacingDelayTemplateConstant          = "pacing delay must not be negative, got %s"
	retryExhaustedErrorTemplateConstant         = "secondary rate limit persisted after %d attempts: %v"
	secondaryLimitHitMessageConstant            = "Secondary rate limit hit; waiting for the reset window"
	negativeWaitMessageConstant                 = "Rate limit reset already elapsed; falling back to the Retry-After hint"
	retryExhaustedMessageConstant               = "Secondary rate limit retries exhausted"
	attemptFieldNameConstant                    = "attempt"
	maximumAttemptsFieldNameConstant            = "max_attempts"
	waitFieldNameConstant                       = "wait"
	computedWaitFieldNameConstant               = "computed_wait"
	resetFieldNameConstant                      = "reset"
	retryAfterFieldNameConstant                 = "retry_after"
	callCountFieldNameConstant                  = "call_count"
)

const (
	// DefaultPacingDelay separates consecutive destination calls.
	DefaultPacingDelay = 10 * time.Second
	// DefaultSecondaryBuffer is added to the reported reset time before retrying.
	DefaultSecondaryBuffer = 5 * time.Minute
	// DefaultMaximumAttempts bounds the total attempts of one call.
	DefaultMaximumAttempts = 3
)

// Outcome classifies the result of one attempt.
type Outcome int

// Attempt outcomes.
const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryableRateLimit
	OutcomeFatal
)

// Clock supplies time to the Invoker. clock.WallClock satisfies it.
type Clock interface {
	Now() time.Time
	After(duration time.Duration) <-chan time.Time
}

// RateLimitSource exposes the latest rate-limit headers seen by the destination client.
type RateLimitSource interface {
	LastRateLimit() (githubcli.RateLimit, bool)
}

// Settings tunes pacing and retry behaviour.
type Settings struct {
	PacingDelay     time.Duration
	SecondaryBuffer time.Duration
	MaximumAttempts int
}

// DefaultSettings returns the stock pacing and retry settings.
func DefaultSettings() Settings {
	return Settings{
		PacingDelay:     DefaultPacingDelay,
		SecondaryBuffer: DefaultSecondaryBuffer,
		MaximumAttempts: DefaultMaximumAttempts,
	}
}

// Dependencies wires collaborators into the Invoker.
type Dependencies struct {
	RateLimits RateLimitSource
	Clock      Clock
	Logger     *zap.Logger
}

// ErrRateLimitSourceNotConfigured indicates the Invoker was built without a rate-limit source.
var ErrRateLimitSourceNotConfigured = errors.New(rateLimitSourceNotConfiguredMessageConstant)

// InvalidSettingsError reports unusable Settings.
type InvalidSettingsError struct {
	Message string
}

// Error returns the validation message.
func (settingsError InvalidSettingsError) Error() string {
	return settingsError.Message
}

// RetryExhaustedError reports that every allowed attempt hit the secondary rate limit.
type RetryExhaustedError struct {
	Attempts int
	Cause    error
}

// Error describes the exhaustion.
func (exhaustedError RetryExhaustedError) Error() string {
	return fmt.Sprintf(retryExhaustedErrorTemplateConstant, exhaustedError.Attempts, exhaustedError.Cause)
}

// Unwrap exposes the last rate-limit error.
func (exhaustedError RetryExhaustedError) Unwrap() error {
	return exhaustedError.Cause
}

// Invoker runs destination calls one at a time, pacing consecutive calls and retrying
// calls rejected by the secondary rate limiter. One Invoker serves one migration run.
type Invoker struct {
	settings   Settings
	rateLimits RateLimitSource
	clock      Clock
	logger     *zap.Logger

	paced     bool
	callCount int
}

// NewInvoker validates settings and constructs an Invoker.
func NewInvoker(settings Settings, dependencies Dependencies) (*Invoker, error) {
	if dependencies.RateLimits == nil {
		return nil, ErrRateLimitSourceNotConfigured
	}
	if settings.MaximumAttempts < 1 {
		return nil, InvalidSettingsError{Message: fmt.Sprintf(invalidMaximumAttemptsTemplateConstant, settings.MaximumAttempts)}
	}
	if settings.PacingDelay < 0 {
		return nil, InvalidSettingsError{Message: fmt.Sprintf(invalidPacingDelayTemplateConstant, settings.PacingDelay)}
	}

	invokerClock := dependencies.Clock
	if invokerClock == nil {
		invokerClock = clock.WallClock
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Invoker{
		settings:   settings,
		rateLimits: dependencies.RateLimits,
		clock:      invokerClock,
		logger:     logger,
	}, nil
}

// CallCount reports how many attempts have been made, retries included.
func (invoker *Invoker) CallCount() int {
	return invoker.callCount
}

// LastRateLimit exposes the latest rate-limit snapshot of the destination client.
func (invoker *Invoker) LastRateLimit() (githubcli.RateLimit, bool) {
	return invoker.rateLimits.LastRateLimit()
}

// Classify maps an attempt's error to an Outcome.
func Classify(callError error) Outcome {
	if callError == nil {
		return OutcomeSuccess
	}
	var secondaryLimitError githubcli.SecondaryRateLimitError
	if errors.As(callError, &secondaryLimitError) {
		return OutcomeRetryableRateLimit
	}
	return OutcomeFatal
}

// Invoke runs call through the invoker and returns its value.
func Invoke[T any](executionContext context.Context, invoker *Invoker, call func(context.Context) (T, error)) (T, error) {
	var result T
	invokeError := invoker.Do(executionContext, func(attemptContext context.Context) error {
		value, callError := call(attemptContext)
		if callError != nil {
			return callError
		}
		result = value
		return nil
	})
	if invokeError != nil {
		var zeroValue T
		return zeroValue, invokeError
	}
	return result, nil
}

// Do runs call, first waiting the pacing delay unless this is the Invoker's first call.
// Secondary rate limit rejections are retried after the reset window; other errors are
// returned unchanged.
func (invoker *Invoker) Do(executionContext context.Context, call func(context.Context) error) error {
	if invoker.paced {
		if sleepError := invoker.sleep(executionContext, invoker.settings.PacingDelay); sleepError != nil {
			return sleepError
		}
	}
	invoker.paced = true

	windowBackOff := &resetWindowBackOff{invoker: invoker}
	retryPolicy := backoff.WithMaxRetries(windowBackOff, uint64(invoker.settings.MaximumAttempts-1))
	retryPolicy.Reset()

	for attempt := 1; ; attempt++ {
		invoker.callCount++
		callError := call(executionContext)

		switch Classify(callError) {
		case OutcomeSuccess:
			return nil
		case OutcomeFatal:
			return callError
		}

		windowBackOff.retryAfter = retryAfterOf(callError)
		wait := retryPolicy.NextBackOff()
		if wait == backoff.Stop {
			invoker.logger.Error(
				retryExhaustedMessageConstant,
				zap.Int(attemptFieldNameConstant, attempt),
				zap.Int(callCountFieldNameConstant, invoker.callCount),
				zap.Error(callError),
			)
			return RetryExhaustedError{Attempts: attempt, Cause: callError}
		}

		invoker.logger.Warn(
			secondaryLimitHitMessageConstant,
			zap.Int(attemptFieldNameConstant, attempt),
			zap.Int(maximumAttemptsFieldNameConstant, invoker.settings.MaximumAttempts),
			zap.Duration(waitFieldNameConstant, wait),
		)
		if sleepError := invoker.sleep(executionContext, wait); sleepError != nil {
			return sleepError
		}
	}
}

func (invoker *Invoker) sleep(executionContext context.Context, duration time.Duration) error {
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	if duration <= 0 {
		return nil
	}
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-invoker.clock.After(duration):
		return nil
	}
}

// retryAfterOf returns the Retry-After hint carried by a secondary rate limit rejection.
func retryAfterOf(callError error) time.Duration {
	var secondaryLimitError githubcli.SecondaryRateLimitError
	if !errors.As(callError, &secondaryLimitError) || secondaryLimitError.RetryAfter < 0 {
		return 0
	}
	return secondaryLimitError.RetryAfter
}

// resetWindowBackOff waits until the reported primary reset time plus the secondary buffer,
// and never less than the Retry-After hint of the rejection being retried.
// It never returns a negative duration, which backoff would read as Stop.
type resetWindowBackOff struct {
	invoker    *Invoker
	retryAfter time.Duration
}

func (windowBackOff *resetWindowBackOff) NextBackOff() time.Duration {
	invoker := windowBackOff.invoker
	wait := invoker.settings.SecondaryBuffer
	if rateLimit, known := invoker.rateLimits.LastRateLimit(); known {
		wait = rateLimit.Reset.Sub(invoker.clock.Now()) + invoker.settings.SecondaryBuffer
		if wait < 0 {
			invoker.logger.Warn(
				negativeWaitMessageConstant,
				zap.Duration(computedWaitFieldNameConstant, wait),
				zap.Time(resetFieldNameConstant, rateLimit.Reset),
				zap.Duration(retryAfterFieldNameConstant, windowBackOff.retryAfter),
			)
			wait = 0
		}
	}
	if wait < windowBackOff.retryAfter {
		return windowBackOff.retryAfter
	}
	return wait
}

func (windowBackOff *resetWindowBackOff) Reset() {}
