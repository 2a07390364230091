package unix

import (
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/transport"
	"github.com/ValentinKolb/rfwd/rpc/transport/base"
	"net"
	"time"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, timeout)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, config common.ClientConfig) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}

	if config.SocketConf.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(config.SocketConf.WriteBufferSize); err != nil {
			return err
		}
	}

	if config.SocketConf.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(config.SocketConf.ReadBufferSize); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Client Factory Method
// --------------------------------------------------------------------------

// NewUnixClient creates a new Unix socket remote client, it satisfies transport.ClientFactory
func NewUnixClient() transport.IRemoteClient {
	return base.NewBaseRemoteClient(&clientConnector{})
}
