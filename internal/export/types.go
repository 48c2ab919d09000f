package export

import "time"

// Issue is a source tracker issue as recorded in the export.
type Issue struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Reporter  string    `json:"reporter"`
	Assignee  string    `json:"assignee"`
	Content   string    `json:"content"`
	CreatedOn time.Time `json:"created_on"`
	Status    string    `json:"status"`
	Kind      string    `json:"kind"`
	Milestone *string   `json:"milestone"`
	Version   *string   `json:"version"`
	Component string    `json:"component"`
}

// Comment is a source tracker comment attached to an issue.
type Comment struct {
	ID        int       `json:"id"`
	IssueID   int       `json:"issue"`
	User      string    `json:"user"`
	Content   string    `json:"content"`
	CreatedOn time.Time `json:"created_on"`
}

// Version names a source tracker version.
type Version struct {
	Name string `json:"name"`
}

// Milestone names a source tracker milestone.
type Milestone struct {
	Name string `json:"name"`
}

// VersionName returns the issue version and whether one is set.
func (issue Issue) VersionName() (string, bool) {
	return optionalName(issue.Version)
}

// MilestoneName returns the issue milestone and whether one is set.
func (issue Issue) MilestoneName() (string, bool) {
	return optionalName(issue.Milestone)
}

func optionalName(value *string) (string, bool) {
	if value == nil {
		return "", false
	}
	return *value, true
}
