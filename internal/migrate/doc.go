// Package migrate moves a Bitbucket issue export into a GitHub repository.
//
// Service sequences the label rebuild, the milestone rebuild, and the per-issue
// migration (issue, then its comments in creation order, then the close
// transition), sending every destination call through a ratelimit.Invoker.
// CommandBuilder exposes the workflow as the migrate Cobra command.
package migrate
