// Package ratelimit paces destination API calls and retries the ones rejected
// by GitHub's secondary rate limiter.
//
// Every call goes through one Invoker per run. Calls after the first wait a
// fixed pacing delay. A secondary rate limit rejection waits until the reset
// time reported by the last response plus a buffer, within a bounded number of
// attempts; any other failure is returned to the caller untouched.
package ratelimit
