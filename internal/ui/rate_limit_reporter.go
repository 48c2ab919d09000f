package ui

import (
	"fmt"
	"io"

	"github.com/temirov/issuemigrate/internal/githubcli"
	"github.com/temirov/issuemigrate/internal/utils"
)

const (
	rateLimitReportTemplateConstant = "issue %d: %d destination calls so far, rate limit %s\n"
	unknownRateLimitConstant        = "unknown"
)

// RateLimitReporter prints periodic progress lines with the destination call count and the
// latest primary rate-limit snapshot.
type RateLimitReporter struct {
	writer io.Writer
}

// NewRateLimitReporter writes reports to writer, flushing after every line. A nil writer discards reports.
func NewRateLimitReporter(writer io.Writer) *RateLimitReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &RateLimitReporter{writer: utils.NewFlushingWriter(writer)}
}

// ReportRateLimit prints one progress line for issueNumber.
func (reporter *RateLimitReporter) ReportRateLimit(issueNumber int, callCount int, rateLimit githubcli.RateLimit, known bool) {
	if reporter == nil {
		return
	}
	rateLimitDisplay := unknownRateLimitConstant
	if known {
		rateLimitDisplay = rateLimit.String()
	}
	_, _ = fmt.Fprintf(reporter.writer, rateLimitReportTemplateConstant, issueNumber, callCount, rateLimitDisplay)
}
