// Package ui renders human-readable console output for a migration run.
//
// ConsoleCommandEventLogger turns gh api invocations into one-line request
// summaries and RateLimitReporter prints periodic call-count and rate-limit
// progress, while detailed telemetry keeps flowing through structured loggers.
package ui
