package transport

import (
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/resp"
)

// --------------------------------------------------------------------------
// Remote Client
// --------------------------------------------------------------------------

// IRemoteClient is a single connection to a remote key-value store speaking RESP.
// Implementations are not safe for concurrent use, a client is owned by exactly one sender.
// Failures are always reported as errors, implementations never panic.
type IRemoteClient interface {
	// Connect opens the connection using the endpoint and timeouts of the config
	Connect(config common.ClientConfig) error
	// Send writes an already encoded command without waiting for its reply
	Send(cmd string) error
	// Recv blocks until the next reply is read
	Recv() (reply *resp.Reply, err error)
	// CheckAliveness returns an error if the connection is known to be dead.
	// It must not put anything on the wire.
	CheckAliveness() error
	// Close closes the connection, it is safe to call Close more than once
	Close() error
}

// ClientFactory creates a new, unconnected client
type ClientFactory func() IRemoteClient
