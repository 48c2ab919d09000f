// Package githubauth decides which GitHub token the migrator hands to gh.
package githubauth
