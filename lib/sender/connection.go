package sender

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/resp"
	"github.com/ValentinKolb/rfwd/rpc/transport"
	"github.com/cenkalti/backoff/v4"
	"strconv"
	"strings"
	"time"
)

const (
	replyOK       = "OK"
	replyNoAuth   = "NOAUTH Authentication required."
	configDBField = "databases"
	dbNamePrefix  = "db"
)

// connection owns the single remote client of a sender. It is only used by the worker goroutine.
type connection struct {
	id      int
	config  common.SenderConfig
	factory transport.ClientFactory
	client  transport.IRemoteClient
	stats   *Stats
}

// --------------------------------------------------------------------------
// Connect / Reset
// --------------------------------------------------------------------------

// connect closes the current client (if any) and blocks until a new, authenticated
// connection exists. Connect failures are retried every ReconnectDelay until ctx is done.
// Authentication mismatches are fatal and end the retry loop.
func (c *connection) connect(ctx context.Context) error {
	c.reset()

	endpoint := c.config.Endpoint()
	clientConf := c.config.ClientConfig()

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ErrStopped)
		}

		client := c.factory()
		if err := client.Connect(clientConf); err != nil {
			return recoverableError("connect", err)
		}

		if err := c.authenticate(client); err != nil {
			_ = client.Close()
			if IsFatal(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		c.client = client
		return nil
	}

	notify := func(err error, next time.Duration) {
		Logger.Warningf("Sender %d can not connect to %s: %v, retry in %s", c.id, endpoint, err, next)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.config.ReconnectDelay), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ctx.Err() != nil {
			return ErrStopped
		}
		return err
	}

	c.stats.connected()
	Logger.Infof("Sender %d connected to %s", c.id, endpoint)
	return nil
}

// reset drops the current client without reconnecting
func (c *connection) reset() {
	if c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		Logger.Debugf("Sender %d failed to close connection: %v", c.id, err)
	}
	c.client = nil
}

// connected reports whether a client is currently held
func (c *connection) connected() bool {
	return c.client != nil
}

// alive probes the held client without disturbing outstanding replies
func (c *connection) alive() bool {
	return c.client != nil && c.client.CheckAliveness() == nil
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// authenticate runs the auth handshake on a freshly connected client.
// With a password AUTH must be answered with OK. Without one a PING must not be
// rejected with NOAUTH. Both mismatches are fatal, transport errors are recoverable.
func (c *connection) authenticate(client transport.IRemoteClient) error {
	if c.config.Password != "" {
		reply, err := roundTrip(client, "AUTH", c.config.Password)
		if err != nil {
			return recoverableError("auth", err)
		}
		if first(reply) != replyOK {
			Logger.Errorf("Sender %d: AUTH rejected by %s: %s", c.id, c.config.Endpoint(), first(reply))
			return fatalError("auth", ErrInvalidPassword)
		}
		return nil
	}

	reply, err := roundTrip(client, "PING")
	if err != nil {
		return recoverableError("ping", err)
	}
	if first(reply) == replyNoAuth {
		Logger.Errorf("Sender %d: %s requires a password", c.id, c.config.Endpoint())
		return fatalError("ping", ErrAuthRequired)
	}
	return nil
}

// checkCapacity asks the remote store for its configured database count and fails
// fatally if it is smaller than ExpectedDatabases. A transport failure reconnects and retries.
func (c *connection) checkCapacity(ctx context.Context) error {
	var reply *resp.Reply
	for {
		if !c.connected() {
			if err := c.connect(ctx); err != nil {
				return err
			}
		}

		var err error
		reply, err = roundTrip(c.client, "CONFIG", "GET", configDBField)
		if err == nil {
			break
		}
		Logger.Warningf("Sender %d failed to query database count: %v", c.id, err)
		c.reset()
	}

	count, err := parseDatabaseCount(reply)
	if err != nil {
		Logger.Errorf("Sender %d: unexpected reply to CONFIG GET %s: %v", c.id, configDBField, reply.Strings())
		return fatalError("check databases", err)
	}
	if count < c.config.ExpectedDatabases {
		Logger.Errorf("Sender %d: %s is configured with %d databases, %d required",
			c.id, c.config.Endpoint(), count, c.config.ExpectedDatabases)
		return fatalError("check databases",
			fmt.Errorf("%w: have %d, need %d", ErrDatabaseCount, count, c.config.ExpectedDatabases))
	}

	Logger.Infof("Sender %d: remote store has %d databases (need %d)", c.id, count, c.config.ExpectedDatabases)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// roundTrip sends one command and waits for its reply. Only valid while no replies are outstanding.
func roundTrip(client transport.IRemoteClient, argv ...string) (*resp.Reply, error) {
	if err := client.Send(resp.SerializeCommand(argv...)); err != nil {
		return nil, err
	}
	return client.Recv()
}

func first(reply *resp.Reply) string {
	values := reply.Strings()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// parseDatabaseCount validates a CONFIG GET databases reply: ["databases", "<digits>"]
func parseDatabaseCount(reply *resp.Reply) (int, error) {
	values := reply.Strings()
	if reply.IsError() || len(values) < 2 || values[0] != configDBField {
		return 0, ErrMalformedReply
	}
	if !isDigits(values[1]) {
		return 0, fmt.Errorf("%w: database count %q is not a number", ErrMalformedReply, values[1])
	}
	count, err := strconv.Atoi(values[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return count, nil
}

// ParseDBIndex extracts the numeric index from a database name of the form "db<digits>".
// The name must be longer than the prefix and the suffix must consist of digits only.
func ParseDBIndex(name string) (string, error) {
	if len(name) <= len(dbNamePrefix) || !strings.HasPrefix(name, dbNamePrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDBName, name)
	}
	index := name[len(dbNamePrefix):]
	if !isDigits(index) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDBName, name)
	}
	return index, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Target check
// --------------------------------------------------------------------------

// CheckTarget connects to the remote store, authenticates and validates its database
// count without forwarding anything. Connect failures are retried until ctx is done.
func CheckTarget(ctx context.Context, config common.SenderConfig, factory transport.ClientFactory) error {
	config = config.WithDefaults()
	stats := newStats(0, nil)
	defer stats.close()

	conn := &connection{
		id:      0,
		config:  config,
		factory: factory,
		stats:   stats,
	}
	defer conn.reset()

	err := conn.connect(ctx)
	if err == nil {
		err = conn.checkCapacity(ctx)
	}
	if err != nil && ctx.Err() != nil && !IsFatal(err) {
		return fmt.Errorf("%s not reachable: %w", config.Endpoint(), ctx.Err())
	}
	return err
}
