package content_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/temirov/issuemigrate/internal/content"
)

const (
	testShortTextCaseNameConstant          = "short_text_unchanged"
	testChangesetCaseNameConstant          = "changeset_reference_rewritten"
	testChangesetUpperCaseNameConstant     = "changeset_reference_case_insensitive"
	testChangesetMultilineCaseNameConstant = "changeset_reference_every_line"
	testTestCeilingConstant                = 200
)

func TestTransformerUnderCeiling(testInstance *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     testShortTextCaseNameConstant,
			input:    "plain *markdown* stays",
			expected: "plain *markdown* stays",
		},
		{
			name:     testChangesetCaseNameConstant,
			input:    "fixed →<<cset 0a1b2c3d>> today",
			expected: "fixed → 《cset 0a1b2c3d》 today",
		},
		{
			name:     testChangesetUpperCaseNameConstant,
			input:    "→  <<CSET ABCDEF12>>",
			expected: "→ 《cset ABCDEF12》",
		},
		{
			name:     testChangesetMultilineCaseNameConstant,
			input:    "one → <<cset aa>>\ntwo → <<cset bb>>",
			expected: "one → 《cset aa》\ntwo → 《cset bb》",
		},
	}

	transformer := content.NewTransformer(testTestCeilingConstant)
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			transformed, truncated := transformer.Transform(testCase.input)
			require.False(testInstance, truncated)
			require.Equal(testInstance, testCase.expected, transformed)
		})
	}
}

func TestTransformerTruncatesAtOrOverCeiling(testInstance *testing.T) {
	transformer := content.NewTransformer(testTestCeilingConstant)

	for _, inputLength := range []int{testTestCeilingConstant, testTestCeilingConstant + 10, testTestCeilingConstant * 5} {
		input := strings.Repeat("x", inputLength)
		transformed, truncated := transformer.Transform(input)
		require.True(testInstance, truncated)
		require.LessOrEqual(testInstance, utf8.RuneCountInString(transformed), testTestCeilingConstant)
		require.True(testInstance, strings.HasPrefix(transformed, content.TruncationBanner+content.TruncationSeparator))
		require.True(testInstance, strings.HasSuffix(transformed, "x"))
	}
}

func TestTransformerCountsCharactersNotBytes(testInstance *testing.T) {
	transformer := content.NewTransformer(testTestCeilingConstant)

	multibyteInput := strings.Repeat("あ", testTestCeilingConstant-1)
	transformed, truncated := transformer.Transform(multibyteInput)
	require.False(testInstance, truncated)
	require.Equal(testInstance, multibyteInput, transformed)

	overflowingInput := strings.Repeat("🐙", testTestCeilingConstant+10)
	truncatedText, wasTruncated := transformer.Transform(overflowingInput)
	require.True(testInstance, wasTruncated)
	require.True(testInstance, utf8.ValidString(truncatedText))
	require.Equal(testInstance, testTestCeilingConstant, utf8.RuneCountInString(truncatedText))
}

func TestTransformerDefaultCeiling(testInstance *testing.T) {
	transformer := content.NewTransformer(0)
	require.Equal(testInstance, content.DestinationBodyLimit-content.BodySafetyMargin, transformer.MaximumLength())

	_, truncated := transformer.Transform(strings.Repeat("y", content.DefaultMaximumLength-1))
	require.False(testInstance, truncated)
}
