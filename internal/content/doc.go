// Package content prepares free-text issue and comment bodies before they are
// sent to the destination tracker: it rewrites changeset cross-references,
// enforces the destination body-size ceiling, and renders ${KEY} templates.
package content
