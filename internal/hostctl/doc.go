// Package hostctl drives the virtualization host's control CLI.
//
// The control tool is an external collaborator invoked as subcommands, each
// printing either a single machine-parsable value (identifier, slot name,
// power token) or a newline-delimited list (VM identifiers, ISO names) on
// standard output. This package turns that contract into typed methods on a
// Client and owns all of the output parsing.
//
// Consumer-Side Interface:
//
// Client is built on the small Runner interface, which executes one
// subcommand and returns its stdout. Production uses the exec-backed runner
// from NewExecRunner; tests substitute an in-memory fake. Higher layers
// (internal/harness) define their own consumer interface satisfied by
// *Client, so they never see Runner at all.
package hostctl
