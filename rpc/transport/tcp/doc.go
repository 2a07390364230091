// Package tcp implements the TCP remote client transport. It provides a
// concrete implementation of the base package's connector interface.
//
// The connector dials with the configured connect timeout and applies the
// TCPConf and SocketConf options (TCP_NODELAY, socket buffer sizes,
// keep-alive period and linger) to every new connection. See the base
// package documentation for the send/receive behaviour.
package tcp
