// Package labels decides which destination labels, assignees, and milestone a
// migrated issue receives.
//
// Source status, kind, and component values map to labels through lookup
// tables; versions and milestones become either templated labels or references
// to destination milestones held in an immutable MilestoneMap.
package labels
