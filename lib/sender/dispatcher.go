package sender

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/rfwd/lib/queue"
	"github.com/ValentinKolb/rfwd/rpc/resp"
	"time"
)

// dispatcher writes commands to the connection without waiting for their replies.
// Replies are read in bulk once maxPending of them are outstanding, which bounds
// the pipeline depth while keeping round trips off the hot path.
type dispatcher struct {
	id    int
	conn  *connection
	stats *Stats

	maxPending       int
	attempts         int
	livenessInterval time.Duration

	pending   int
	lastCheck time.Time
}

func newDispatcher(id int, conn *connection, stats *Stats) *dispatcher {
	return &dispatcher{
		id:               id,
		conn:             conn,
		stats:            stats,
		maxPending:       conn.config.MaxPendingReplies,
		attempts:         conn.config.SendAttempts,
		livenessInterval: conn.config.LivenessInterval,
		lastCheck:        time.Now(),
	}
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

// dispatch forwards one entry as SELECT <index> followed by the command.
// A failed write reconnects and retries the pair, after the last failed attempt
// the entry is given up with a recoverable error. Invalid database names are fatal.
func (d *dispatcher) dispatch(ctx context.Context, e queue.Entry) error {
	index, err := ParseDBIndex(e.DB)
	if err != nil {
		Logger.Errorf("Sender %d: %v", d.id, err)
		return fatalError("select", err)
	}

	if err := d.checkLiveness(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if lastErr = d.selectDatabase(index); lastErr == nil {
			if lastErr = d.send(e.Command); lastErr == nil {
				return nil
			}
		}

		Logger.Warningf("Sender %d failed to send command, times: %d, error: %v", d.id, attempt, lastErr)
		if err := d.reconnect(ctx); err != nil {
			return err
		}
	}

	return recoverableError("send", fmt.Errorf("%w after %d attempts: %v", ErrSendFailed, d.attempts, lastErr))
}

// selectDatabase issues SELECT on the current connection. The selection is never cached,
// a new connection always starts on database 0.
func (d *dispatcher) selectDatabase(index string) error {
	return d.write(resp.SerializeCommand("SELECT", index))
}

func (d *dispatcher) send(cmd string) error {
	if err := d.write(cmd); err != nil {
		return err
	}
	d.stats.commandSent(len(cmd))
	return nil
}

// write puts one encoded command on the wire and drains once the pipeline is full
func (d *dispatcher) write(cmd string) error {
	if !d.conn.connected() {
		return ErrNotConnected
	}
	if err := d.conn.client.Send(cmd); err != nil {
		return err
	}

	d.pending++
	d.stats.setPending(d.pending)
	if d.pending >= d.maxPending {
		d.drain()
	}
	return nil
}

// --------------------------------------------------------------------------
// Replies
// --------------------------------------------------------------------------

// drain reads exactly as many replies as are outstanding. Error replies are counted
// but do not stop the drain. A receive failure drops the connection, the replies still
// in flight are lost with it and the next write reconnects.
func (d *dispatcher) drain() {
	for d.pending > 0 {
		if !d.conn.connected() {
			break
		}
		reply, err := d.conn.client.Recv()
		if err != nil {
			Logger.Warningf("Sender %d lost the connection with %d replies outstanding: %v", d.id, d.pending, err)
			d.conn.reset()
			break
		}
		d.pending--
		if reply.IsError() {
			d.stats.replyError()
			Logger.Debugf("Sender %d: remote store replied with error: %s", d.id, reply.Str)
		}
	}
	d.pending = 0
	d.stats.setPending(0)
}

// --------------------------------------------------------------------------
// Connection health
// --------------------------------------------------------------------------

// checkLiveness probes the connection if more than livenessInterval passed since the last
// probe and reconnects if it is dead. A missing connection is reconnected right away.
func (d *dispatcher) checkLiveness(ctx context.Context) error {
	if !d.conn.connected() {
		return d.reconnect(ctx)
	}

	now := time.Now()
	if now.Sub(d.lastCheck) < d.livenessInterval {
		return nil
	}
	d.lastCheck = now
	d.stats.livenessChecked(now)

	if d.conn.alive() {
		return nil
	}
	Logger.Warningf("Sender %d: connection to %s is dead, reconnecting", d.id, d.conn.config.Endpoint())
	return d.reconnect(ctx)
}

// reconnect forgets all outstanding replies and opens a new connection
func (d *dispatcher) reconnect(ctx context.Context) error {
	d.pending = 0
	d.stats.setPending(0)
	return d.conn.connect(ctx)
}
