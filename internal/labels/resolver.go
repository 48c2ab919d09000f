package labels

import (
	"errors"
	"strings"

	"github.com/temirov/issuemigrate/internal/content"
	"github.com/temirov/issuemigrate/internal/export"
)

// Category names the two source attributes that may become milestones.
type Category string

// Supported categories.
const (
	CategoryVersion   Category = Category("version")
	CategoryMilestone Category = Category("milestone")
)

const bothCategoriesReferenceMessageConstant = "versions and milestones cannot both be migrated as milestone references; at least one must be a label"

// ErrBothCategoriesReferenceMilestones reports a policy where neither versions nor milestones are labels.
var ErrBothCategoriesReferenceMilestones = errors.New(bothCategoriesReferenceMessageConstant)

// CategoryPolicy selects label mode or milestone-reference mode for a category.
type CategoryPolicy struct {
	AsLabel       bool
	LabelTemplate string
}

// Rules carries the lookup tables and policies applied to every issue.
type Rules struct {
	StatusLabels    map[string]string
	KindLabels      map[string]string
	ComponentLabels map[string]string
	UserLogins      map[string]string
	StaticLabels    []string
	ForceLabel      string
	OmitLabel       string
	Version         CategoryPolicy
	Milestone       CategoryPolicy
}

// CreationPlan describes the label, assignee, and milestone portion of an issue creation request.
type CreationPlan struct {
	Labels    []string
	Assignees []string
	Milestone *int
}

// Resolver applies Rules to source issues.
type Resolver struct {
	rules Rules
}

// NewResolver validates rules and constructs a Resolver.
func NewResolver(rules Rules) (Resolver, error) {
	if !rules.Version.AsLabel && !rules.Milestone.AsLabel {
		return Resolver{}, ErrBothCategoriesReferenceMilestones
	}
	return Resolver{rules: rules}, nil
}

// StatusLabel returns the label mapped from a source status.
func (resolver Resolver) StatusLabel(status string) (string, bool) {
	return lookupLabel(resolver.rules.StatusLabels, status)
}

// KindLabel returns the label mapped from a source kind.
func (resolver Resolver) KindLabel(kind string) (string, bool) {
	return lookupLabel(resolver.rules.KindLabels, kind)
}

// ComponentLabel returns the label mapped from a source component.
func (resolver Resolver) ComponentLabel(component string) (string, bool) {
	return lookupLabel(resolver.rules.ComponentLabels, component)
}

// AssigneeLogin returns the destination login mapped from a source user name.
func (resolver Resolver) AssigneeLogin(sourceUser string) (string, bool) {
	return lookupLabel(resolver.rules.UserLogins, sourceUser)
}

// OmitLabel returns the truncation marker label when one is configured.
func (resolver Resolver) OmitLabel() (string, bool) {
	return nonEmpty(resolver.rules.OmitLabel)
}

// ForceLabel returns the label applied to every migrated issue when one is configured.
func (resolver Resolver) ForceLabel() (string, bool) {
	return nonEmpty(resolver.rules.ForceLabel)
}

// UsesMilestones reports whether the category is migrated as milestone references.
func (resolver Resolver) UsesMilestones(category Category) bool {
	return !resolver.policy(category).AsLabel
}

// LabelNames returns the label set recreated before issue migration: static labels
// followed by one templated label per distinct version and milestone name in label mode.
func (resolver Resolver) LabelNames(versionNames []string, milestoneNames []string) []string {
	names := newOrderedSet()
	for _, staticLabel := range resolver.rules.StaticLabels {
		names.add(staticLabel)
	}
	if resolver.rules.Version.AsLabel {
		for _, versionName := range versionNames {
			names.add(resolver.categoryLabel(CategoryVersion, versionName))
		}
	}
	if resolver.rules.Milestone.AsLabel {
		for _, milestoneName := range milestoneNames {
			names.add(resolver.categoryLabel(CategoryMilestone, milestoneName))
		}
	}
	return names.values()
}

// ResolveCreation computes labels, assignees, and milestone for a new issue.
// bodyTruncated adds the omit label.
func (resolver Resolver) ResolveCreation(issue export.Issue, milestones MilestoneMap, bodyTruncated bool) (CreationPlan, error) {
	issueLabels := newOrderedSet()

	if bodyTruncated {
		if omitLabel, configured := resolver.OmitLabel(); configured {
			issueLabels.add(omitLabel)
		}
	}
	if forceLabel, configured := resolver.ForceLabel(); configured {
		issueLabels.add(forceLabel)
	}
	if statusLabel, mapped := resolver.StatusLabel(issue.Status); mapped {
		issueLabels.add(statusLabel)
	}
	if kindLabel, mapped := resolver.KindLabel(issue.Kind); mapped {
		issueLabels.add(kindLabel)
	}
	if componentLabel, mapped := resolver.ComponentLabel(issue.Component); mapped {
		issueLabels.add(componentLabel)
	}

	for _, category := range []Category{CategoryVersion, CategoryMilestone} {
		categoryName, present := issueCategoryName(issue, category)
		if present && resolver.policy(category).AsLabel {
			issueLabels.add(resolver.categoryLabel(category, categoryName))
		}
	}

	milestoneNumber, milestoneError := resolver.resolveMilestone(issue, milestones)
	if milestoneError != nil {
		return CreationPlan{}, milestoneError
	}

	var assignees []string
	if assigneeLogin, mapped := resolver.AssigneeLogin(issue.Assignee); mapped {
		assignees = append(assignees, assigneeLogin)
	}

	return CreationPlan{
		Labels:    issueLabels.values(),
		Assignees: assignees,
		Milestone: milestoneNumber,
	}, nil
}

// ResolveClose recomputes the milestone to send with the close request. The destination
// clears an issue's milestone on close unless the request specifies it again.
func (resolver Resolver) ResolveClose(issue export.Issue, milestones MilestoneMap) (*int, error) {
	return resolver.resolveMilestone(issue, milestones)
}

func (resolver Resolver) resolveMilestone(issue export.Issue, milestones MilestoneMap) (*int, error) {
	for _, category := range []Category{CategoryVersion, CategoryMilestone} {
		if resolver.policy(category).AsLabel {
			continue
		}
		categoryName, present := issueCategoryName(issue, category)
		if !present {
			continue
		}
		reference, exists := milestones.Lookup(categoryName)
		if !exists {
			return nil, MissingMilestoneError{IssueID: issue.ID, Category: category, Name: categoryName}
		}
		milestoneNumber := reference.Number
		return &milestoneNumber, nil
	}
	return nil, nil
}

func (resolver Resolver) policy(category Category) CategoryPolicy {
	if category == CategoryVersion {
		return resolver.rules.Version
	}
	return resolver.rules.Milestone
}

func (resolver Resolver) categoryLabel(category Category, name string) string {
	template := resolver.policy(category).LabelTemplate
	if category == CategoryVersion {
		return content.VersionLabel(template, name)
	}
	return content.MilestoneLabel(template, name)
}

func issueCategoryName(issue export.Issue, category Category) (string, bool) {
	var name string
	var present bool
	if category == CategoryVersion {
		name, present = issue.VersionName()
	} else {
		name, present = issue.MilestoneName()
	}
	if !present || len(strings.TrimSpace(name)) == 0 {
		return "", false
	}
	return name, true
}

func lookupLabel(table map[string]string, key string) (string, bool) {
	if len(key) == 0 {
		return "", false
	}
	mapped, exists := table[key]
	if !exists {
		// Mapping keys loaded through the configuration layer arrive lowercased.
		mapped, exists = table[strings.ToLower(key)]
		if !exists {
			return "", false
		}
	}
	return nonEmpty(mapped)
}

func nonEmpty(value string) (string, bool) {
	if len(strings.TrimSpace(value)) == 0 {
		return "", false
	}
	return value, true
}

type orderedSet struct {
	seen    map[string]struct{}
	ordered []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (set *orderedSet) add(value string) {
	if len(value) == 0 {
		return
	}
	if _, exists := set.seen[value]; exists {
		return
	}
	set.seen[value] = struct{}{}
	set.ordered = append(set.ordered, value)
}

func (set *orderedSet) values() []string {
	return append([]string{}, set.ordered...)
}
