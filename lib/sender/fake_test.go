package sender

import (
	"bufio"
	"errors"
	"github.com/ValentinKolb/rfwd/lib/queue"
	"github.com/ValentinKolb/rfwd/rpc/common"
	"github.com/ValentinKolb/rfwd/rpc/resp"
	"github.com/ValentinKolb/rfwd/rpc/transport"
	"strings"
	"sync"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// In memory remote store
// --------------------------------------------------------------------------

var errFakeIO = errors.New("fake: broken pipe")

// fakeStore answers like a redis server and records every data command it receives
type fakeStore struct {
	mu sync.Mutex

	password  string
	databases string

	refuse          bool // every connect fails
	connectFailures int  // the next n connects fail
	failCommands    int  // the next n data command writes fail

	connects   int
	commands   []string
	maxPending int
	unread     int // replies still queued on a connection when it was closed
	clients    []*fakeClient
}

func newFakeStore() *fakeStore {
	return &fakeStore{databases: "16"}
}

func (s *fakeStore) factory() transport.ClientFactory {
	return func() transport.IRemoteClient {
		return &fakeClient{store: s}
	}
}

// kill marks every open connection as dead
func (s *fakeStore) kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		c.dead = true
	}
}

func (s *fakeStore) set(f func(s *fakeStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}

func (s *fakeStore) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *fakeStore) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *fakeStore) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *fakeStore) MaxPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxPending
}

// reply computes the answer to argv, must be called with mu held
func (s *fakeStore) reply(argv []string) *resp.Reply {
	switch strings.ToUpper(argv[0]) {
	case "AUTH":
		if len(argv) == 2 && argv[1] == s.password {
			return &resp.Reply{Type: resp.TypeSimpleString, Str: "OK"}
		}
		return &resp.Reply{Type: resp.TypeError, Str: "WRONGPASS invalid username-password pair"}
	case "PING":
		if s.password != "" {
			return &resp.Reply{Type: resp.TypeError, Str: "NOAUTH Authentication required."}
		}
		return &resp.Reply{Type: resp.TypeSimpleString, Str: "PONG"}
	case "CONFIG":
		return &resp.Reply{Type: resp.TypeArray, Elems: []*resp.Reply{
			{Type: resp.TypeBulkString, Str: "databases"},
			{Type: resp.TypeBulkString, Str: s.databases},
		}}
	case "BAD":
		return &resp.Reply{Type: resp.TypeError, Str: "ERR unknown command 'BAD'"}
	default:
		return &resp.Reply{Type: resp.TypeSimpleString, Str: "OK"}
	}
}

func isHandshake(cmd string) bool {
	switch strings.ToUpper(cmd) {
	case "AUTH", "PING", "CONFIG":
		return true
	}
	return false
}

// fakeClient is one connection to a fakeStore
type fakeClient struct {
	store   *fakeStore
	replies []*resp.Reply
	dead    bool
	closed  bool
}

func (c *fakeClient) Connect(_ common.ClientConfig) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if c.store.refuse {
		return errFakeIO
	}
	if c.store.connectFailures > 0 {
		c.store.connectFailures--
		return errFakeIO
	}
	c.store.connects++
	c.store.clients = append(c.store.clients, c)
	return nil
}

func (c *fakeClient) Send(cmd string) error {
	decoded, err := resp.ReadReply(bufio.NewReader(strings.NewReader(cmd)))
	if err != nil {
		return err
	}
	argv := decoded.Strings()

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if c.dead || c.closed {
		return errFakeIO
	}
	if !isHandshake(argv[0]) {
		if c.store.failCommands > 0 {
			c.store.failCommands--
			return errFakeIO
		}
		c.store.commands = append(c.store.commands, strings.Join(argv, " "))
	}

	c.replies = append(c.replies, c.store.reply(argv))
	if len(c.replies) > c.store.maxPending {
		c.store.maxPending = len(c.replies)
	}
	return nil
}

func (c *fakeClient) Recv() (*resp.Reply, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if c.dead || c.closed || len(c.replies) == 0 {
		return nil, errFakeIO
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func (c *fakeClient) CheckAliveness() error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if c.dead || c.closed {
		return errFakeIO
	}
	return nil
}

func (c *fakeClient) Close() error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if !c.closed {
		c.store.unread += len(c.replies)
	}
	c.closed = true
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func testConfig() common.SenderConfig {
	return common.SenderConfig{
		Host:              "fake",
		ExpectedDatabases: 16,
		DBName:            "test",
		ReconnectDelay:    time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		LivenessInterval:  time.Hour,
	}
}

// waitFor polls cond until it holds or fails the test after a few seconds
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// dropRecorder collects dropped entries
type dropRecorder struct {
	mu   sync.Mutex
	errs []error
	dbs  []string
}

func (r *dropRecorder) handler(e queue.Entry, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbs = append(r.dbs, e.DB)
	r.errs = append(r.errs, err)
}

func (r *dropRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *dropRecorder) Errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
