package githubauth

import (
	"os"
	"strings"
)

// Environment variable names consulted for a GitHub token, in order of preference.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

// TokenSource records where a resolved token came from.
type TokenSource string

// Token sources in precedence order.
const (
	TokenSourceFlag          TokenSource = TokenSource("flag")
	TokenSourceConfiguration TokenSource = TokenSource("configuration")
	TokenSourceEnvironment   TokenSource = TokenSource("environment")
	TokenSourceNone          TokenSource = TokenSource("none")
)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// EnvironmentLookup resolves one environment variable.
type EnvironmentLookup func(key string) (string, bool)

// TokenRequest carries the candidate token values.
type TokenRequest struct {
	FlagValue          string
	ConfigurationValue string
	LookupEnvironment  EnvironmentLookup
}

// ResolvedToken is the outcome of token resolution. An empty Value means gh falls back to its stored login.
type ResolvedToken struct {
	Value               string
	Source              TokenSource
	EnvironmentVariable string
}

// Found reports whether a token was resolved.
func (resolved ResolvedToken) Found() bool {
	return len(resolved.Value) > 0
}

// ResolveToken applies the precedence flag, configuration, then GH_TOKEN, GITHUB_TOKEN, GITHUB_API_TOKEN.
// Blank values are skipped.
func ResolveToken(request TokenRequest) ResolvedToken {
	if value := strings.TrimSpace(request.FlagValue); len(value) > 0 {
		return ResolvedToken{Value: value, Source: TokenSourceFlag}
	}
	if value := strings.TrimSpace(request.ConfigurationValue); len(value) > 0 {
		return ResolvedToken{Value: value, Source: TokenSourceConfiguration}
	}

	lookupEnvironment := request.LookupEnvironment
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}
	for _, key := range tokenPreference {
		value, exists := lookupEnvironment(key)
		if !exists {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) > 0 {
			return ResolvedToken{Value: value, Source: TokenSourceEnvironment, EnvironmentVariable: key}
		}
	}
	return ResolvedToken{Source: TokenSourceNone}
}
