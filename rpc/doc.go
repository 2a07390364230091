// Package rpc provides the communication layer between the senders and the
// remote key-value store.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures (SenderConfig, ClientConfig, socket
//     settings) and the logger factory used by every package.
//
//   - resp: Encoding of commands and decoding of replies in the RESP wire format.
//
//   - transport: The IRemoteClient connection abstraction with pluggable
//     implementations (TCP, Unix sockets).
package rpc
