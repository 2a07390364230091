// Package unix implements the remote client transport over Unix domain
// sockets, for targets running on the same machine (redis-server --unixsocket).
//
// The endpoint is the socket path. Only the socket buffer sizes of SocketConf
// apply; TCPConf is ignored.
package unix
