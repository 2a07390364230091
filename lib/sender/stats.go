package sender

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
	"sync/atomic"
	"time"
)

// Stats holds the counters of one sender. All methods are safe for concurrent use,
// the worker writes and any number of observers read.
type Stats struct {
	elements    atomic.Int64
	sent        atomic.Int64
	dropped     atomic.Int64
	reconnects  atomic.Int64
	replyErrors atomic.Int64
	pending     atomic.Int64
	lastCheck   atomic.Int64 // unix nano of the last liveness check
	connects    atomic.Int64

	perDB *xsync.MapOf[string, *atomic.Int64]
	meter gometrics.Meter

	// prometheus series, shared by all senders with the same id
	promElements    *metrics.Counter
	promSent        *metrics.Counter
	promDropped     *metrics.Counter
	promReconnects  *metrics.Counter
	promReplyErrors *metrics.Counter
	promCmdSize     *metrics.Histogram
}

// StatsSnapshot is a point in time copy of Stats
type StatsSnapshot struct {
	Elements          int64
	Sent              int64
	Dropped           int64
	Reconnects        int64
	ReplyErrors       int64
	Pending           int64
	Rate1             float64
	RateMean          float64
	LastLivenessCheck time.Time
	PerDatabase       map[string]int64
}

// newStats creates the counters of sender id. Without queueLen (the target check)
// no gauges are published.
func newStats(id int, queueLen func() int) *Stats {
	label := fmt.Sprintf(`{sender="%d"}`, id)

	s := &Stats{
		perDB:           xsync.NewMapOf[string, *atomic.Int64](),
		meter:           gometrics.NewMeter(),
		promElements:    metrics.GetOrCreateCounter("rfwd_elements_processed_total" + label),
		promSent:        metrics.GetOrCreateCounter("rfwd_commands_sent_total" + label),
		promDropped:     metrics.GetOrCreateCounter("rfwd_commands_dropped_total" + label),
		promReconnects:  metrics.GetOrCreateCounter("rfwd_reconnects_total" + label),
		promReplyErrors: metrics.GetOrCreateCounter("rfwd_reply_errors_total" + label),
		promCmdSize:     metrics.GetOrCreateHistogram("rfwd_command_size_bytes" + label),
	}

	if queueLen != nil {
		bindGauges(id, s, queueLen)
	}

	return s
}

// --------------------------------------------------------------------------
// Gauges
// --------------------------------------------------------------------------

// gaugeSource is what the gauges of one sender id read. A gauge can be registered
// only once per name, so later senders with the same id swap themselves in here.
type gaugeSource struct {
	stats    atomic.Pointer[Stats]
	queueLen atomic.Pointer[func() int]
}

var gaugeSources = xsync.NewMapOf[int, *gaugeSource]()

// bindGauges points the gauges of id at s, registering them on first use
func bindGauges(id int, s *Stats, queueLen func() int) {
	src, loaded := gaugeSources.LoadOrCompute(id, func() *gaugeSource {
		return &gaugeSource{}
	})
	src.stats.Store(s)
	src.queueLen.Store(&queueLen)
	if loaded {
		return
	}

	label := fmt.Sprintf(`{sender="%d"}`, id)
	metrics.GetOrCreateGauge("rfwd_pending_replies"+label, func() float64 {
		return float64(src.stats.Load().pending.Load())
	})
	metrics.GetOrCreateGauge("rfwd_queue_length"+label, func() float64 {
		return float64((*src.queueLen.Load())())
	})
}

// --------------------------------------------------------------------------
// Writers (called by the worker)
// --------------------------------------------------------------------------

func (s *Stats) elementProcessed(db string) {
	s.elements.Add(1)
	s.promElements.Inc()

	counter, _ := s.perDB.LoadOrCompute(db, func() *atomic.Int64 {
		return &atomic.Int64{}
	})
	counter.Add(1)
}

func (s *Stats) commandSent(size int) {
	s.sent.Add(1)
	s.promSent.Inc()
	s.promCmdSize.Update(float64(size))
	s.meter.Mark(1)
}

func (s *Stats) commandDropped() {
	s.dropped.Add(1)
	s.promDropped.Inc()
}

func (s *Stats) connected() {
	// the first connect is not a reconnect
	if s.connects.Add(1) > 1 {
		s.reconnects.Add(1)
		s.promReconnects.Inc()
	}
}

func (s *Stats) replyError() {
	s.replyErrors.Add(1)
	s.promReplyErrors.Inc()
}

func (s *Stats) setPending(n int) {
	s.pending.Store(int64(n))
}

func (s *Stats) livenessChecked(t time.Time) {
	s.lastCheck.Store(t.UnixNano())
}

func (s *Stats) close() {
	s.meter.Stop()
}

// --------------------------------------------------------------------------
// Readers
// --------------------------------------------------------------------------

// ElementsProcessed returns the number of entries taken from the queue
func (s *Stats) ElementsProcessed() int64 {
	return s.elements.Load()
}

// Snapshot returns a copy of all counters
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Elements:    s.elements.Load(),
		Sent:        s.sent.Load(),
		Dropped:     s.dropped.Load(),
		Reconnects:  s.reconnects.Load(),
		ReplyErrors: s.replyErrors.Load(),
		Pending:     s.pending.Load(),
		Rate1:       s.meter.Rate1(),
		RateMean:    s.meter.RateMean(),
		PerDatabase: make(map[string]int64),
	}
	if last := s.lastCheck.Load(); last > 0 {
		snap.LastLivenessCheck = time.Unix(0, last)
	}
	s.perDB.Range(func(db string, counter *atomic.Int64) bool {
		snap.PerDatabase[db] = counter.Load()
		return true
	})
	return snap
}

// Merge adds other to the snapshot, used to aggregate the senders of a pool
func (s StatsSnapshot) Merge(other StatsSnapshot) StatsSnapshot {
	merged := StatsSnapshot{
		Elements:    s.Elements + other.Elements,
		Sent:        s.Sent + other.Sent,
		Dropped:     s.Dropped + other.Dropped,
		Reconnects:  s.Reconnects + other.Reconnects,
		ReplyErrors: s.ReplyErrors + other.ReplyErrors,
		Pending:     s.Pending + other.Pending,
		Rate1:       s.Rate1 + other.Rate1,
		RateMean:    s.RateMean + other.RateMean,
		PerDatabase: make(map[string]int64, len(s.PerDatabase)),
	}
	merged.LastLivenessCheck = s.LastLivenessCheck
	if other.LastLivenessCheck.After(merged.LastLivenessCheck) {
		merged.LastLivenessCheck = other.LastLivenessCheck
	}
	for db, n := range s.PerDatabase {
		merged.PerDatabase[db] += n
	}
	for db, n := range other.PerDatabase {
		merged.PerDatabase[db] += n
	}
	return merged
}

// String returns a one line representation for progress logs
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("processed=%d sent=%d dropped=%d reconnects=%d reply-errors=%d pending=%d rate1m=%.1f/s",
		s.Elements, s.Sent, s.Dropped, s.Reconnects, s.ReplyErrors, s.Pending, s.Rate1)
}
