// Package execshell runs external command-line tools on behalf of the migrator.
//
// ShellExecutor logs every invocation and reports lifecycle events to
// CommandEventObserver implementations; OSCommandRunner performs the actual
// process execution. The GitHub client reaches the destination API through
// ExecuteGitHubCLI.
package execshell
