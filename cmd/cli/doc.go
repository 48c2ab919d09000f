// Package cli constructs the issue-migrate command-line interface. It wires the
// Cobra command hierarchy to the layered configuration loader and the zap
// loggers, and registers the migrate and config commands.
package cli
