// Package base provides the socket handling shared by all remote client
// transports. It implements transport.IRemoteClient independent of the
// specific network (TCP, Unix sockets) and is extended with protocol-specific
// connectors.
//
// Key Components:
//
//   - IClientConnector: Dials the endpoint with a timeout and applies
//     protocol-specific socket options (UpgradeConnection).
//
//   - remoteClient: One buffered connection. Send writes the encoded command
//     under a write deadline and returns without reading; Recv reads exactly
//     one reply under a read deadline. This split is what allows the sender to
//     pipeline commands.
//
// Aliveness:
//
//	CheckAliveness never writes. It peeks at the socket with a very short read
//	deadline: pending data or a timeout means the connection is alive, EOF or
//	a reset means the peer has gone away.
//
// Thread Safety:
//
//	A client is owned by a single goroutine. None of the methods are safe for
//	concurrent use.
package base
