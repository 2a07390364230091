/*
Package sender forwards commands to a remote Redis compatible store.

A Sender owns a bounded queue, one connection and a worker goroutine. Producers
call Enqueue from any goroutine; the worker connects, authenticates, checks that
the remote store has enough databases and then sends every entry as

	SELECT <index>
	<command>

without waiting for replies. Replies are read in batches once MaxPendingReplies
of them are outstanding, so the pipeline depth stays bounded.

Lifecycle:

	init -> connecting -> validating-target -> running -> draining -> stopped

Network failures are absorbed: the worker reconnects every ReconnectDelay and
retries a failed command up to SendAttempts times before reporting it to the
DropHandler. Configuration mismatches (wrong password, missing password, too few
databases, malformed database name) are fatal: the worker stops and Wait returns
an *Error with Kind KindFatal.

A Pool spreads entries over several senders by routing key.
*/
package sender
