package sender

import (
	"context"
	"errors"
	"github.com/ValentinKolb/rfwd/lib/util"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/transport"
	"sync"
	"sync/atomic"
)

// Pool runs several independent senders against the same remote store.
// Entries with the same routing key always go to the same sender, which keeps
// their relative order. A fatal error in one sender aborts all of them.
type Pool struct {
	senders []*Sender
	next    atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	errs []error
}

// NewPool creates n senders (at least one) sharing config and factory
func NewPool(n int, config common.SenderConfig, factory transport.ClientFactory) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		senders: make([]*Sender, n),
		done:    make(chan struct{}),
	}
	for i := range p.senders {
		p.senders[i] = NewSender(i, config, factory)
	}
	return p
}

// Senders returns the senders of the pool
func (p *Pool) Senders() []*Sender {
	return p.senders
}

// OnDrop registers the drop handler on every sender. Must be called before Start.
func (p *Pool) OnDrop(handler DropHandler) {
	for _, s := range p.senders {
		s.OnDrop(handler)
	}
}

// Start runs all senders in the background
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	var wg sync.WaitGroup
	for _, s := range p.senders {
		wg.Add(1)
		go func(s *Sender) {
			defer wg.Done()
			if err := s.Run(ctx); err != nil {
				p.fail(err)
			}
		}(s)
	}

	go func() {
		wg.Wait()
		p.cancel()
		close(p.done)
	}()
}

// Enqueue routes the command to a sender. An empty key is distributed round robin.
func (p *Pool) Enqueue(key, db, command string) error {
	return p.route(key).Enqueue(db, command)
}

func (p *Pool) route(key string) *Sender {
	if len(p.senders) == 1 {
		return p.senders[0]
	}
	if key == "" {
		return p.senders[(p.next.Add(1)-1)%uint64(len(p.senders))]
	}
	return p.senders[util.Bucket(key, len(p.senders))]
}

// Stop stops all senders gracefully
func (p *Pool) Stop() {
	for _, s := range p.senders {
		s.Stop()
	}
}

// Done is closed once every sender has exited
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until every sender exited and returns their joined errors
func (p *Pool) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Pool) fail(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()

	Logger.Errorf("Aborting all senders: %v", err)
	p.cancel()
}

// ElementsProcessed is the sum over all senders
func (p *Pool) ElementsProcessed() int64 {
	var total int64
	for _, s := range p.senders {
		total += s.ElementsProcessed()
	}
	return total
}

// Snapshot aggregates the stats of all senders
func (p *Pool) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{PerDatabase: map[string]int64{}}
	for _, s := range p.senders {
		snap = snap.Merge(s.Stats().Snapshot())
	}
	return snap
}

// Balance describes how evenly the processed elements are spread over the senders
func (p *Pool) Balance() util.Stats {
	counts := make([]int64, len(p.senders))
	for i, s := range p.senders {
		counts[i] = s.ElementsProcessed()
	}
	return util.NewStats(counts)
}
