package sender

import (
	"context"
	"errors"
	"github.com/ValentinKolb/rfwd/lib/queue"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"sync/atomic"
)

var Logger = logger.GetLogger("sender")

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// State is the lifecycle state of a sender
type State int32

const (
	StateInit State = iota
	StateConnecting
	StateValidatingTarget
	StateRunning
	StateDraining
	StateStopped
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateValidatingTarget:
		return "validating-target"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DropHandler is called for every entry that was accepted by Enqueue but never
// reached the remote store. It runs on the worker goroutine.
type DropHandler func(e queue.Entry, err error)

// --------------------------------------------------------------------------
// Sender
// --------------------------------------------------------------------------

// Sender forwards commands from its bounded queue to one remote store.
// Any number of goroutines may call Enqueue, a single worker (Run) owns the connection.
type Sender struct {
	id     int
	config common.SenderConfig
	queue  *queue.Queue
	conn   *connection
	disp   *dispatcher
	stats  *Stats

	state    atomic.Int32
	started  atomic.Bool
	stopping atomic.Bool

	// stopCtx is cancelled by Stop, it ends reconnect attempts
	stopCtx    context.Context
	stopCancel context.CancelFunc

	onDrop DropHandler
	done   chan struct{}
	err    error
}

// NewSender creates a sender for the given configuration. Unset tunables are filled with defaults.
// The sender does nothing until Run or Start is called.
func NewSender(id int, config common.SenderConfig, factory transport.ClientFactory) *Sender {
	config = config.WithDefaults()
	q := queue.New(config.QueueCapacity)
	stats := newStats(id, q.Len)

	conn := &connection{
		id:      id,
		config:  config,
		factory: factory,
		stats:   stats,
	}

	stopCtx, stopCancel := context.WithCancel(context.Background())

	return &Sender{
		id:         id,
		config:     config,
		queue:      q,
		conn:       conn,
		disp:       newDispatcher(id, conn, stats),
		stats:      stats,
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
		done:       make(chan struct{}),
	}
}

// ID returns the id the sender was created with
func (s *Sender) ID() int {
	return s.id
}

// OnDrop registers the handler for lost entries. Must be called before Run.
func (s *Sender) OnDrop(handler DropHandler) {
	s.onDrop = handler
}

// Enqueue adds a command for the given database to the queue.
// It blocks while the queue is full and returns queue.ErrClosed once the sender stops.
func (s *Sender) Enqueue(db, command string) error {
	return s.queue.Enqueue(db, command)
}

// ElementsProcessed returns how many entries the worker took from the queue
func (s *Sender) ElementsProcessed() int64 {
	return s.stats.ElementsProcessed()
}

// State returns the current lifecycle state
func (s *Sender) State() State {
	return State(s.state.Load())
}

// Stats returns the counters of the sender
func (s *Sender) Stats() *Stats {
	return s.stats
}

// QueueLen returns the number of entries waiting to be sent
func (s *Sender) QueueLen() int {
	return s.queue.Len()
}

// Start runs the worker in a new goroutine, use Wait for the result
func (s *Sender) Start(ctx context.Context) {
	go func() {
		_ = s.Run(ctx)
	}()
}

// Stop asks the worker to finish. Entries already queued are still sent while the
// connection is healthy, no reconnect is attempted anymore. Enqueue fails from now on.
// Stop does not block, use Wait.
func (s *Sender) Stop() {
	if !s.stopping.CompareAndSwap(false, true) {
		return
	}
	Logger.Infof("Stopping sender %d (%d entries queued)", s.id, s.queue.Len())
	s.queue.Close()
	s.stopCancel()
}

// Done is closed once the worker has exited
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the worker exited and returns its error.
// The error is nil after a regular stop and fatal (see IsFatal) otherwise.
func (s *Sender) Wait() error {
	<-s.done
	return s.err
}

// Run is the worker loop: connect, validate the remote store, then forward queued
// entries until the sender is stopped, ctx is cancelled or a fatal error occurs.
// Cancelling ctx aborts immediately, queued entries are reported as dropped.
func (s *Sender) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	// an aborted run must also end reconnect attempts
	unlink := context.AfterFunc(ctx, s.stopCancel)
	defer unlink()

	err := s.run(ctx)
	s.finish(err)
	return s.err
}

func (s *Sender) run(ctx context.Context) error {
	Logger.Infof("Starting sender %d for %s (local db %s)", s.id, s.config.Endpoint(), s.config.DBName)

	s.setState(StateConnecting)
	if err := s.conn.connect(s.stopCtx); err != nil {
		return err
	}

	s.setState(StateValidatingTarget)
	if err := s.conn.checkCapacity(s.stopCtx); err != nil {
		return err
	}

	s.setState(StateRunning)
	for ctx.Err() == nil {
		e, ok := s.queue.Dequeue(s.config.PollInterval)
		if !ok {
			if s.queue.IsClosed() {
				break
			}
			continue
		}

		s.stats.elementProcessed(e.DB)
		if err := s.disp.dispatch(s.stopCtx, e); err != nil {
			s.drop(e, err)
			if IsFatal(err) {
				// replies of commands already written are still collected
				s.setState(StateDraining)
				s.disp.drain()
				return err
			}
			if errors.Is(err, ErrStopped) {
				// stopped while the connection was down, nothing else can be sent
				break
			}
		}
	}

	s.setState(StateDraining)
	s.disp.drain()
	return nil
}

// finish releases the connection, reports everything still queued and publishes the result
func (s *Sender) finish(err error) {
	if errors.Is(err, ErrStopped) {
		err = nil
	}

	s.queue.Close()
	s.stopCancel()
	s.conn.reset()

	for _, e := range s.queue.Drain() {
		s.drop(e, ErrStopped)
	}

	s.stats.close()
	s.err = err
	s.setState(StateStopped)

	if err != nil {
		Logger.Errorf("Sender %d stopped: %v", s.id, err)
	} else {
		Logger.Infof("Sender %d stopped after %d elements", s.id, s.stats.ElementsProcessed())
	}
	close(s.done)
}

func (s *Sender) drop(e queue.Entry, err error) {
	s.stats.commandDropped()
	Logger.Warningf("Sender %d dropped command for %s: %v", s.id, e.DB, err)
	if s.onDrop != nil {
		s.onDrop(e, err)
	}
}

func (s *Sender) setState(state State) {
	s.state.Store(int32(state))
	Logger.Debugf("Sender %d is now %s", s.id, state)
}
