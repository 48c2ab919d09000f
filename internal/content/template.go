package content

import (
	"bufio"
	"strconv"
	"strings"
	"time"

	"github.com/temirov/issuemigrate/internal/export"
)

// Placeholder keys recognized by issue, comment, and label templates.
const (
	PlaceholderTitle         = "TITLE"
	PlaceholderNumber        = "NUMBER"
	PlaceholderMarkdown      = "MARKDOWN"
	PlaceholderQuoteMarkdown = "QUOTE_MARKDOWN"
	PlaceholderURL           = "URL"
	PlaceholderCreatedAt     = "CREATED_AT"
	PlaceholderUser          = "USER"
	PlaceholderVersion       = "VERSION"
	PlaceholderMilestone     = "MILESTONE"
)

const (
	placeholderOpeningConstant    = "${"
	placeholderClosingConstant    = "}"
	quotePrefixConstant           = "> "
	lineSeparatorConstant         = "\n"
	urlPathSeparatorConstant      = "/"
	commentAnchorTemplateConstant = "#comment-"
	createdAtLayoutConstant       = "2006-01-02T15:04:05Z"
)

// RenderTemplate substitutes ${KEY} placeholders from values. Unknown keys and
// unterminated placeholders are left untouched.
func RenderTemplate(template string, values map[string]string) string {
	var builder strings.Builder
	remaining := template
	for {
		openingIndex := strings.Index(remaining, placeholderOpeningConstant)
		if openingIndex < 0 {
			builder.WriteString(remaining)
			return builder.String()
		}

		afterOpening := remaining[openingIndex+len(placeholderOpeningConstant):]
		closingIndex := strings.Index(afterOpening, placeholderClosingConstant)
		if closingIndex < 0 {
			builder.WriteString(remaining)
			return builder.String()
		}

		key := afterOpening[:closingIndex]
		builder.WriteString(remaining[:openingIndex])
		if value, known := values[key]; known {
			builder.WriteString(value)
		} else {
			builder.WriteString(placeholderOpeningConstant + key + placeholderClosingConstant)
		}
		remaining = afterOpening[closingIndex+len(placeholderClosingConstant):]
	}
}

// QuoteMarkdown prefixes every line of text with a block-quote marker.
func QuoteMarkdown(text string) string {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), len(text)+1)

	quotedLines := make([]string, 0)
	for scanner.Scan() {
		quotedLines = append(quotedLines, quotePrefixConstant+scanner.Text())
	}
	return strings.Join(quotedLines, lineSeparatorConstant)
}

// JoinURL concatenates a base URL and a path with exactly one slash between them.
func JoinURL(baseURL string, itemPath string) string {
	return strings.TrimRight(baseURL, urlPathSeparatorConstant) + urlPathSeparatorConstant + strings.TrimLeft(itemPath, urlPathSeparatorConstant)
}

// FormatCreatedAt renders a timestamp as an ISO-8601 UTC string.
func FormatCreatedAt(timestamp time.Time) string {
	return timestamp.UTC().Format(createdAtLayoutConstant)
}

// PlaceholderBuilder assembles template values for issues and comments.
type PlaceholderBuilder struct {
	IssueBaseURL string
}

// Title returns the values available to title templates.
func (builder PlaceholderBuilder) Title(issue export.Issue) map[string]string {
	return map[string]string{
		PlaceholderTitle:  issue.Title,
		PlaceholderNumber: strconv.Itoa(issue.ID),
	}
}

// Issue returns the values available to issue body templates. transformedContent
// is the issue content after Transformer.Transform.
func (builder PlaceholderBuilder) Issue(issue export.Issue, transformedContent string) map[string]string {
	values := builder.Title(issue)
	values[PlaceholderMarkdown] = transformedContent
	values[PlaceholderQuoteMarkdown] = QuoteMarkdown(transformedContent)
	values[PlaceholderURL] = JoinURL(builder.IssueBaseURL, strconv.Itoa(issue.ID))
	values[PlaceholderCreatedAt] = FormatCreatedAt(issue.CreatedOn)
	values[PlaceholderUser] = issue.Reporter
	return values
}

// Comment returns the values available to comment templates.
func (builder PlaceholderBuilder) Comment(issue export.Issue, comment export.Comment, transformedContent string) map[string]string {
	values := builder.Title(issue)
	values[PlaceholderMarkdown] = transformedContent
	values[PlaceholderQuoteMarkdown] = QuoteMarkdown(transformedContent)
	values[PlaceholderURL] = JoinURL(builder.IssueBaseURL, strconv.Itoa(issue.ID)+commentAnchorTemplateConstant+strconv.Itoa(comment.ID))
	values[PlaceholderCreatedAt] = FormatCreatedAt(comment.CreatedOn)
	values[PlaceholderUser] = comment.User
	return values
}

// VersionLabel renders a version label template.
func VersionLabel(template string, versionName string) string {
	return RenderTemplate(template, map[string]string{PlaceholderVersion: versionName})
}

// MilestoneLabel renders a milestone label template.
func MilestoneLabel(template string, milestoneName string) string {
	return RenderTemplate(template, map[string]string{PlaceholderMilestone: milestoneName})
}
