package export

import (
	"sort"
)

// Document holds every record of a loaded export. It is never mutated after loading.
type Document struct {
	issues     []Issue
	comments   []Comment
	versions   []Version
	milestones []Milestone
	byIssue    map[int][]Comment
}

// NewDocument indexes the supplied records. Comments are grouped by owning issue and ordered by creation time.
func NewDocument(issues []Issue, comments []Comment, versions []Version, milestones []Milestone) *Document {
	document := &Document{
		issues:     append([]Issue(nil), issues...),
		comments:   append([]Comment(nil), comments...),
		versions:   append([]Version(nil), versions...),
		milestones: append([]Milestone(nil), milestones...),
		byIssue:    make(map[int][]Comment),
	}

	for _, comment := range document.comments {
		document.byIssue[comment.IssueID] = append(document.byIssue[comment.IssueID], comment)
	}
	for issueID := range document.byIssue {
		issueComments := document.byIssue[issueID]
		sort.SliceStable(issueComments, func(leftIndex int, rightIndex int) bool {
			return issueComments[leftIndex].CreatedOn.Before(issueComments[rightIndex].CreatedOn)
		})
	}

	return document
}

// IssueCount reports the number of issues in the export.
func (document *Document) IssueCount() int {
	return len(document.issues)
}

// IssuesFrom returns issues whose id is at least startIssueID, ascending by id.
func (document *Document) IssuesFrom(startIssueID int) []Issue {
	selected := make([]Issue, 0, len(document.issues))
	for _, issue := range document.issues {
		if issue.ID >= startIssueID {
			selected = append(selected, issue)
		}
	}
	sort.SliceStable(selected, func(leftIndex int, rightIndex int) bool {
		return selected[leftIndex].ID < selected[rightIndex].ID
	})
	return selected
}

// CommentsFor returns the comments of an issue ascending by creation time.
func (document *Document) CommentsFor(issueID int) []Comment {
	return append([]Comment(nil), document.byIssue[issueID]...)
}

// VersionNames returns distinct version names in export order.
func (document *Document) VersionNames() []string {
	names := make([]string, 0, len(document.versions))
	for _, version := range document.versions {
		names = append(names, version.Name)
	}
	return distinctNames(names)
}

// MilestoneNames returns distinct milestone names in export order.
func (document *Document) MilestoneNames() []string {
	names := make([]string, 0, len(document.milestones))
	for _, milestone := range document.milestones {
		names = append(names, milestone.Name)
	}
	return distinctNames(names)
}

func distinctNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	distinct := make([]string, 0, len(names))
	for _, name := range names {
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		distinct = append(distinct, name)
	}
	return distinct
}
