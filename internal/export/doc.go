// Package export reads issue-tracker project exports (the db-1.0.json document
// produced by the source tracker) into immutable domain records and exposes
// the ordered views consumed by the migration workflow.
package export
