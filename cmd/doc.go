// Package cmd implements the command-line interface of rfwd, the asynchronous
// redis command forwarder.
//
// The package is organized into several subpackages:
//
//   - forward: Reads commands from a file, stdin or kafka and forwards them to the remote store
//   - check: Verifies that the remote store is reachable, authenticates and has enough databases
//   - compare: Compares the content of a source and a target store database by database
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See rfwd -help for a list of all commands.
package cmd
