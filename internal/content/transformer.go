package content

import (
	"regexp"
	"unicode/utf8"
)

const (
	// DestinationBodyLimit is the destination API ceiling for issue and comment bodies, in characters.
	DestinationBodyLimit = 65536
	// BodySafetyMargin is reserved for template text surrounding the transformed content.
	BodySafetyMargin = 500
	// DefaultMaximumLength is the default ceiling applied to transformed content.
	DefaultMaximumLength = DestinationBodyLimit - BodySafetyMargin
	// TruncationBanner opens every truncated body.
	TruncationBanner = "**Content truncated during migration!**"
	// TruncationSeparator separates the banner from the retained content.
	TruncationSeparator = "\n\n----\n"

	changesetReferenceReplacementConstant = "→ 《cset $1》"
)

var changesetReferencePattern = regexp.MustCompile(`(?i)→\s*<<cset\s+([a-f0-9]+)>>`)

// Transformer normalizes and truncates user content.
type Transformer struct {
	maximumLength int
}

// NewTransformer builds a Transformer with the provided ceiling. Non-positive values select DefaultMaximumLength.
func NewTransformer(maximumLength int) Transformer {
	if maximumLength <= 0 {
		maximumLength = DefaultMaximumLength
	}
	return Transformer{maximumLength: maximumLength}
}

// MaximumLength reports the ceiling, in characters.
func (transformer Transformer) MaximumLength() int {
	return transformer.maximumLength
}

// Transform rewrites changeset references and truncates content reaching the ceiling.
// The boolean result reports whether truncation happened.
func (transformer Transformer) Transform(text string) (string, bool) {
	normalized := changesetReferencePattern.ReplaceAllString(text, changesetReferenceReplacementConstant)

	if utf8.RuneCountInString(normalized) < transformer.maximumLength {
		return normalized, false
	}

	prefix := TruncationBanner + TruncationSeparator
	retainedLength := transformer.maximumLength - utf8.RuneCountInString(prefix)
	if retainedLength < 0 {
		retainedLength = 0
	}

	return truncateRunes(prefix+truncateRunes(normalized, retainedLength), transformer.maximumLength), true
}

func truncateRunes(text string, runeLimit int) string {
	if runeLimit <= 0 {
		return ""
	}
	runeCount := 0
	for byteOffset := range text {
		if runeCount == runeLimit {
			return text[:byteOffset]
		}
		runeCount++
	}
	return text
}
