package labels

import (
	"fmt"
)

const missingMilestoneErrorTemplateConstant = "issue %d references %s %q but no destination milestone with that title exists"

// MilestoneReference identifies a destination milestone.
type MilestoneReference struct {
	Title  string
	Number int
}

// MilestoneMap resolves milestone titles to destination milestones. It is immutable once built.
type MilestoneMap struct {
	entries map[string]MilestoneReference
}

// NewMilestoneMap indexes references by title. Later duplicates replace earlier ones.
func NewMilestoneMap(references []MilestoneReference) MilestoneMap {
	entries := make(map[string]MilestoneReference, len(references))
	for _, reference := range references {
		entries[reference.Title] = reference
	}
	return MilestoneMap{entries: entries}
}

// Lookup returns the milestone registered under title.
func (milestoneMap MilestoneMap) Lookup(title string) (MilestoneReference, bool) {
	reference, exists := milestoneMap.entries[title]
	return reference, exists
}

// Len reports the number of registered milestones.
func (milestoneMap MilestoneMap) Len() int {
	return len(milestoneMap.entries)
}

// MissingMilestoneError reports a milestone-reference mode name absent from the MilestoneMap.
type MissingMilestoneError struct {
	IssueID  int
	Category Category
	Name     string
}

// Error describes the missing mapping.
func (missingError MissingMilestoneError) Error() string {
	return fmt.Sprintf(missingMilestoneErrorTemplateConstant, missingError.IssueID, missingError.Category, missingError.Name)
}
