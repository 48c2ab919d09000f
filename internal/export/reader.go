package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExportFileName is the file the source tracker writes inside an export directory.
const DefaultExportFileName = "db-1.0.json"

const (
	exportPathRequiredMessageConstant       = "export path required"
	readErrorTemplateConstant               = "unable to read export %s: %v"
	decodeErrorTemplateConstant             = "unable to decode export %s: %v"
	integrityErrorTemplateConstant          = "export %s is inconsistent: %s"
	duplicateIssueMessageTemplateConstant   = "issue %d appears more than once"
	invalidIssueIDMessageTemplateConstant   = "issue id %d is not positive"
	missingIssuesArrayMessageConstant       = "issues array missing"
	duplicateCommentMessageTemplateConstant = "comment %d appears more than once"
)

// ErrExportPathRequired indicates the reader was asked to load an empty path.
var ErrExportPathRequired = errors.New(exportPathRequiredMessageConstant)

// ReadError reports that the export file could not be opened or read.
type ReadError struct {
	Path  string
	Cause error
}

// Error describes the read failure.
func (readError ReadError) Error() string {
	return fmt.Sprintf(readErrorTemplateConstant, readError.Path, readError.Cause)
}

// Unwrap exposes the underlying file system error.
func (readError ReadError) Unwrap() error {
	return readError.Cause
}

// DecodeError reports malformed export JSON.
type DecodeError struct {
	Path  string
	Cause error
}

// Error describes the decoding failure.
func (decodeError DecodeError) Error() string {
	return fmt.Sprintf(decodeErrorTemplateConstant, decodeError.Path, decodeError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodeError DecodeError) Unwrap() error {
	return decodeError.Cause
}

// IntegrityError reports well-formed JSON whose records contradict each other.
type IntegrityError struct {
	Path    string
	Message string
}

// Error describes the inconsistency.
func (integrityError IntegrityError) Error() string {
	return fmt.Sprintf(integrityErrorTemplateConstant, integrityError.Path, integrityError.Message)
}

type exportEnvelope struct {
	Issues     *[]Issue    `json:"issues"`
	Comments   []Comment   `json:"comments"`
	Versions   []Version   `json:"versions"`
	Milestones []Milestone `json:"milestones"`
}

// Reader loads export documents from the file system.
type Reader struct{}

// NewReader constructs a Reader.
func NewReader() Reader {
	return Reader{}
}

// ResolvePath returns the export file for a path naming either the file or its directory.
func (Reader) ResolvePath(exportPath string) (string, error) {
	trimmedPath := strings.TrimSpace(exportPath)
	if len(trimmedPath) == 0 {
		return "", ErrExportPathRequired
	}

	fileInfo, statError := os.Stat(trimmedPath)
	if statError != nil {
		return "", ReadError{Path: trimmedPath, Cause: statError}
	}
	if fileInfo.IsDir() {
		return filepath.Join(trimmedPath, DefaultExportFileName), nil
	}
	return trimmedPath, nil
}

// Read loads and validates the export located at exportPath.
func (reader Reader) Read(exportPath string) (*Document, error) {
	resolvedPath, resolveError := reader.ResolvePath(exportPath)
	if resolveError != nil {
		return nil, resolveError
	}

	contentBytes, readError := os.ReadFile(resolvedPath)
	if readError != nil {
		return nil, ReadError{Path: resolvedPath, Cause: readError}
	}

	return Decode(resolvedPath, contentBytes)
}

// Decode parses export JSON. sourceName is only used in error messages.
func Decode(sourceName string, contentBytes []byte) (*Document, error) {
	var envelope exportEnvelope
	if decodeError := json.Unmarshal(contentBytes, &envelope); decodeError != nil {
		return nil, DecodeError{Path: sourceName, Cause: decodeError}
	}
	if envelope.Issues == nil {
		return nil, IntegrityError{Path: sourceName, Message: missingIssuesArrayMessageConstant}
	}

	issues := *envelope.Issues
	seenIssues := make(map[int]struct{}, len(issues))
	for _, issue := range issues {
		if issue.ID <= 0 {
			return nil, IntegrityError{Path: sourceName, Message: fmt.Sprintf(invalidIssueIDMessageTemplateConstant, issue.ID)}
		}
		if _, duplicate := seenIssues[issue.ID]; duplicate {
			return nil, IntegrityError{Path: sourceName, Message: fmt.Sprintf(duplicateIssueMessageTemplateConstant, issue.ID)}
		}
		seenIssues[issue.ID] = struct{}{}
	}

	seenComments := make(map[int]struct{}, len(envelope.Comments))
	for _, comment := range envelope.Comments {
		if _, duplicate := seenComments[comment.ID]; duplicate {
			return nil, IntegrityError{Path: sourceName, Message: fmt.Sprintf(duplicateCommentMessageTemplateConstant, comment.ID)}
		}
		seenComments[comment.ID] = struct{}{}
	}

	return NewDocument(issues, envelope.Comments, envelope.Versions, envelope.Milestones), nil
}
