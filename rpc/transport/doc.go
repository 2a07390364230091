// Package transport defines the connection abstraction used by the senders to
// talk to the remote key-value store.
//
// Key Components:
//
//   - IRemoteClient: One RESP connection with connect, fire-and-forget send,
//     blocking receive, a side-effect free aliveness check and close.
//
//   - ClientFactory: Creates unconnected clients. Senders call the factory on
//     every reconnect, so a client is never reused after a failure.
//
// Implementations live in the sub packages: base provides the socket handling,
// tcp and unix provide the dialers.
package transport
