package base

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/resp"
	"github.com/ValentinKolb/rfwd/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"time"
)

var Logger = logger.GetLogger("transport")

var ErrNotConnected = errors.New("not connected")

const (
	// aliveCheckTimeout bounds the non-blocking peek of CheckAliveness
	aliveCheckTimeout = time.Millisecond
	defaultReadBuffer = 64 * 1024
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection, giving up after timeout
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// remoteClient implements transport.IRemoteClient on top of a connector
type remoteClient struct {
	connector IClientConnector
	config    common.ClientConfig
	conn      net.Conn
	reader    *bufio.Reader
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseRemoteClient creates a new unconnected client with the specified connector
func NewBaseRemoteClient(connector IClientConnector) transport.IRemoteClient {
	return &remoteClient{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRemoteClient)
// --------------------------------------------------------------------------

func (c *remoteClient) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	// drop a previous connection
	_ = c.Close()
	c.config = config

	conn, err := c.connector.Connect(config.Endpoint, config.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", config.Endpoint, err)
	}

	readBuffer := defaultReadBuffer
	if config.SocketConf.ReadBufferSize > readBuffer {
		readBuffer = config.SocketConf.ReadBufferSize
	}

	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, readBuffer)

	Logger.Debugf("Connected to %s using %s transport", config.Endpoint, c.connector.GetName())
	return nil
}

func (c *remoteClient) Send(cmd string) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	if err := c.conn.SetWriteDeadline(deadline(c.config.SendTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	return writeAll(c.conn, []byte(cmd))
}

func (c *remoteClient) Recv() (*resp.Reply, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	if err := c.conn.SetReadDeadline(deadline(c.config.RecvTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	return resp.ReadReply(c.reader)
}

func (c *remoteClient) CheckAliveness() error {
	if c.conn == nil {
		return ErrNotConnected
	}

	// unread replies prove the peer was alive recently enough
	if c.reader.Buffered() > 0 {
		return nil
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(aliveCheckTimeout)); err != nil {
		return err
	}
	_, err := c.reader.Peek(1)
	if resetErr := c.conn.SetReadDeadline(time.Time{}); resetErr != nil {
		return resetErr
	}

	// data pending or nothing to read yet: alive
	if err == nil || isTimeout(err) {
		return nil
	}
	return err
}

func (c *remoteClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}
