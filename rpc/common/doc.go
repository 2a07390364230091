// Package common provides the configuration structures and the logging setup
// shared by all packages of rfwd.
//
// Key Components:
//
//   - SenderConfig: Immutable configuration of a single sender (target
//     endpoint, credentials, expected database count and the pipeline/timing
//     tunables). WithDefaults fills every unset tunable.
//
//   - ClientConfig: Per-connection configuration handed to a remote client
//     transport (endpoint, timeouts, socket options).
//
//   - ForwardConfig: Configuration of one forwarder process (number of
//     senders, command source, metrics endpoint).
//
//   - Logger: Custom logging implementation plugged into dragonboat's logger
//     registry so every package can use logger.GetLogger(name).
package common
