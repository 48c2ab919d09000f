// Package githubcli talks to the GitHub REST API through `gh api --include`.
//
// Client drives go-github over a transport that runs gh and reads its printed
// response back with net/http. go-github's CheckResponse sorts failures:
// secondary rate limit rejections become SecondaryRateLimitError, everything
// else APIError. The rate headers of the latest response are kept for
// LastRateLimit.
package githubcli
