package labels_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/issuemigrate/internal/export"
	"github.com/temirov/issuemigrate/internal/labels"
)

const (
	testForceLabelConstant          = "migrated"
	testOmitLabelConstant           = "truncated"
	testVersionTemplateConstant     = "version: ${VERSION}"
	testMilestoneTemplateConstant   = "milestone: ${MILESTONE}"
	testReleaseVersionConstant      = "1.0"
	testSprintMilestoneConstant     = "Sprint 3"
	testLabelModeCaseNameConstant   = "versions_and_milestones_as_labels"
	testReferenceCaseNameConstant   = "versions_as_milestone_references"
	testUnmappedCaseNameConstant    = "unmapped_values_skipped"
	testTruncatedCaseNameConstant   = "truncated_body_adds_omit_label_once"
	testDuplicateCaseNameConstant   = "duplicate_labels_collapsed"
	testMilestoneReferenceNumber    = 4
	testMilestoneReferenceSecondary = 9
)

func stringPointer(value string) *string {
	return &value
}

func baseRules() labels.Rules {
	return labels.Rules{
		StatusLabels:    map[string]string{"new": "status: new", "resolved": "status: resolved", "invalid": ""},
		KindLabels:      map[string]string{"bug": "kind: bug", "enhancement": "kind: enhancement"},
		ComponentLabels: map[string]string{"core": "component: core"},
		UserLogins:      map[string]string{"alice": "alice-gh"},
		StaticLabels:    []string{testForceLabelConstant, "status: new"},
		ForceLabel:      testForceLabelConstant,
		OmitLabel:       testOmitLabelConstant,
		Version:         labels.CategoryPolicy{AsLabel: true, LabelTemplate: testVersionTemplateConstant},
		Milestone:       labels.CategoryPolicy{AsLabel: true, LabelTemplate: testMilestoneTemplateConstant},
	}
}

func TestNewResolverRejectsDoubleReferenceMode(testInstance *testing.T) {
	rules := baseRules()
	rules.Version.AsLabel = false
	rules.Milestone.AsLabel = false

	_, resolverError := labels.NewResolver(rules)
	require.ErrorIs(testInstance, resolverError, labels.ErrBothCategoriesReferenceMilestones)
}

func TestResolveCreation(testInstance *testing.T) {
	milestones := labels.NewMilestoneMap([]labels.MilestoneReference{
		{Title: testReleaseVersionConstant, Number: testMilestoneReferenceNumber},
		{Title: testSprintMilestoneConstant, Number: testMilestoneReferenceSecondary},
	})

	testCases := []struct {
		name              string
		mutateRules       func(*labels.Rules)
		issue             export.Issue
		bodyTruncated     bool
		expectedLabels    []string
		expectedAssignees []string
		expectedMilestone *int
	}{
		{
			name: testLabelModeCaseNameConstant,
			issue: export.Issue{
				ID:        3,
				Status:    "new",
				Kind:      "bug",
				Component: "core",
				Assignee:  "alice",
				Version:   stringPointer(testReleaseVersionConstant),
				Milestone: stringPointer(testSprintMilestoneConstant),
			},
			expectedLabels:    []string{testForceLabelConstant, "status: new", "kind: bug", "component: core", "version: 1.0", "milestone: Sprint 3"},
			expectedAssignees: []string{"alice-gh"},
		},
		{
			name: testReferenceCaseNameConstant,
			mutateRules: func(rules *labels.Rules) {
				rules.Version.AsLabel = false
			},
			issue: export.Issue{
				ID:        5,
				Status:    "resolved",
				Kind:      "enhancement",
				Version:   stringPointer(testReleaseVersionConstant),
				Milestone: stringPointer(testSprintMilestoneConstant),
			},
			expectedLabels:    []string{testForceLabelConstant, "status: resolved", "kind: enhancement", "milestone: Sprint 3"},
			expectedMilestone: intPointer(testMilestoneReferenceNumber),
		},
		{
			name: testUnmappedCaseNameConstant,
			mutateRules: func(rules *labels.Rules) {
				rules.ForceLabel = ""
			},
			issue: export.Issue{
				ID:        6,
				Status:    "invalid",
				Kind:      "proposal",
				Component: "docs",
				Assignee:  "mallory",
			},
			expectedLabels: []string{},
		},
		{
			name:          testTruncatedCaseNameConstant,
			issue:         export.Issue{ID: 7, Status: "new"},
			bodyTruncated: true,
			mutateRules: func(rules *labels.Rules) {
				rules.ForceLabel = testOmitLabelConstant
			},
			expectedLabels: []string{testOmitLabelConstant, "status: new"},
		},
		{
			name: testDuplicateCaseNameConstant,
			mutateRules: func(rules *labels.Rules) {
				rules.KindLabels["bug"] = "status: new"
			},
			issue:          export.Issue{ID: 8, Status: "new", Kind: "bug"},
			expectedLabels: []string{testForceLabelConstant, "status: new"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			rules := baseRules()
			if testCase.mutateRules != nil {
				testCase.mutateRules(&rules)
			}
			resolver, resolverError := labels.NewResolver(rules)
			require.NoError(testInstance, resolverError)

			plan, planError := resolver.ResolveCreation(testCase.issue, milestones, testCase.bodyTruncated)
			require.NoError(testInstance, planError)
			require.Equal(testInstance, testCase.expectedLabels, plan.Labels)
			require.Equal(testInstance, testCase.expectedAssignees, plan.Assignees)
			require.Equal(testInstance, testCase.expectedMilestone, plan.Milestone)
		})
	}
}

func TestResolveCloseReattachesMilestone(testInstance *testing.T) {
	rules := baseRules()
	rules.Milestone.AsLabel = false
	resolver, resolverError := labels.NewResolver(rules)
	require.NoError(testInstance, resolverError)

	milestones := labels.NewMilestoneMap([]labels.MilestoneReference{{Title: testSprintMilestoneConstant, Number: testMilestoneReferenceSecondary}})
	issue := export.Issue{ID: 11, Status: "resolved", Milestone: stringPointer(testSprintMilestoneConstant)}

	plan, planError := resolver.ResolveCreation(issue, milestones, false)
	require.NoError(testInstance, planError)

	closeMilestone, closeError := resolver.ResolveClose(issue, milestones)
	require.NoError(testInstance, closeError)
	require.Equal(testInstance, plan.Milestone, closeMilestone)
	require.Equal(testInstance, testMilestoneReferenceSecondary, *closeMilestone)

	labelModeResolver, labelModeError := labels.NewResolver(baseRules())
	require.NoError(testInstance, labelModeError)
	noMilestone, noMilestoneError := labelModeResolver.ResolveClose(issue, milestones)
	require.NoError(testInstance, noMilestoneError)
	require.Nil(testInstance, noMilestone)
}

func TestResolveCreationMissingMilestone(testInstance *testing.T) {
	rules := baseRules()
	rules.Version.AsLabel = false
	resolver, resolverError := labels.NewResolver(rules)
	require.NoError(testInstance, resolverError)

	issue := export.Issue{ID: 12, Version: stringPointer("2.0")}
	_, planError := resolver.ResolveCreation(issue, labels.NewMilestoneMap(nil), false)
	require.Error(testInstance, planError)

	var missingError labels.MissingMilestoneError
	require.True(testInstance, errors.As(planError, &missingError))
	require.Equal(testInstance, 12, missingError.IssueID)
	require.Equal(testInstance, labels.CategoryVersion, missingError.Category)
	require.Equal(testInstance, "2.0", missingError.Name)

	_, closeError := resolver.ResolveClose(issue, labels.NewMilestoneMap(nil))
	require.ErrorAs(testInstance, closeError, &missingError)
}

func TestLabelNames(testInstance *testing.T) {
	resolver, resolverError := labels.NewResolver(baseRules())
	require.NoError(testInstance, resolverError)

	names := resolver.LabelNames([]string{"1.0", "1.1"}, []string{testSprintMilestoneConstant})
	require.Equal(testInstance, []string{testForceLabelConstant, "status: new", "version: 1.0", "version: 1.1", "milestone: Sprint 3"}, names)

	rules := baseRules()
	rules.Milestone.AsLabel = false
	referenceResolver, referenceError := labels.NewResolver(rules)
	require.NoError(testInstance, referenceError)
	require.True(testInstance, referenceResolver.UsesMilestones(labels.CategoryMilestone))
	require.False(testInstance, referenceResolver.UsesMilestones(labels.CategoryVersion))
	require.Equal(testInstance,
		[]string{testForceLabelConstant, "status: new", "version: 1.0"},
		referenceResolver.LabelNames([]string{"1.0"}, []string{testSprintMilestoneConstant}),
	)
}

func TestMilestoneMapLookup(testInstance *testing.T) {
	milestones := labels.NewMilestoneMap([]labels.MilestoneReference{{Title: "v1", Number: 1}, {Title: "v2", Number: 2}})
	require.Equal(testInstance, 2, milestones.Len())

	reference, exists := milestones.Lookup("v2")
	require.True(testInstance, exists)
	require.Equal(testInstance, 2, reference.Number)

	_, missing := milestones.Lookup("v3")
	require.False(testInstance, missing)
}

func intPointer(value int) *int {
	return &value
}

func TestLookupsFoldLowercasedConfigurationKeys(testInstance *testing.T) {
	resolver, resolverError := labels.NewResolver(baseRules())
	require.NoError(testInstance, resolverError)

	kindLabel, mapped := resolver.KindLabel("Bug")
	require.True(testInstance, mapped)
	require.Equal(testInstance, "kind: bug", kindLabel)

	assigneeLogin, mapped := resolver.AssigneeLogin("Alice")
	require.True(testInstance, mapped)
	require.Equal(testInstance, "alice-gh", assigneeLogin)

	_, mapped = resolver.StatusLabel("invalid")
	require.False(testInstance, mapped)
}
