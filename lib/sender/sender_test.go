package sender

import (
	"context"
	"errors"
	"github.com/ValentinKolb/rfwd/lib/queue"
	"github.com/ValentinKolb/rfwd/rpc/resp"
	"strconv"
	"testing"
	"time"
)

func startRunning(t *testing.T, s *Sender) {
	t.Helper()
	s.Start(context.Background())
	waitFor(t, "sender running", func() bool { return s.State() == StateRunning })
}

func stopAndWait(t *testing.T, s *Sender) {
	t.Helper()
	s.Stop()
	if err := s.Wait(); err != nil {
		t.Fatalf("unexpected error from Wait: %v", err)
	}
	if s.State() != StateStopped {
		t.Fatalf("expected state %s, got %s", StateStopped, s.State())
	}
}

// --------------------------------------------------------------------------
// Forwarding
// --------------------------------------------------------------------------

func TestSenderForwardsInOrder(t *testing.T) {
	store := newFakeStore()
	s := NewSender(0, testConfig(), store.factory())
	startRunning(t, s)

	for i := 0; i < 10; i++ {
		db := "db" + strconv.Itoa(i%3)
		if err := s.Enqueue(db, resp.SerializeCommand("SET", "k"+strconv.Itoa(i), "v")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	waitFor(t, "10 elements", func() bool { return s.ElementsProcessed() == 10 })
	stopAndWait(t, s)

	cmds := store.Commands()
	if len(cmds) != 20 {
		t.Fatalf("expected 20 commands, got %d: %v", len(cmds), cmds)
	}
	for i := 0; i < 10; i++ {
		if want := "SELECT " + strconv.Itoa(i%3); cmds[2*i] != want {
			t.Errorf("command %d: expected %q, got %q", 2*i, want, cmds[2*i])
		}
		if want := "SET k" + strconv.Itoa(i) + " v"; cmds[2*i+1] != want {
			t.Errorf("command %d: expected %q, got %q", 2*i+1, want, cmds[2*i+1])
		}
	}

	if err := s.Enqueue("db0", "x"); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("expected ErrClosed after stop, got %v", err)
	}

	snap := s.Stats().Snapshot()
	if snap.Sent != 10 || snap.Dropped != 0 {
		t.Errorf("expected 10 sent and 0 dropped, got %d/%d", snap.Sent, snap.Dropped)
	}
	if snap.PerDatabase["db0"] != 4 || snap.PerDatabase["db1"] != 3 || snap.PerDatabase["db2"] != 3 {
		t.Errorf("unexpected per database counts: %v", snap.PerDatabase)
	}
}

func TestSenderStopSendsQueuedEntries(t *testing.T) {
	store := newFakeStore()
	s := NewSender(0, testConfig(), store.factory())
	startRunning(t, s)

	for i := 0; i < 500; i++ {
		if err := s.Enqueue("db0", resp.SerializeCommand("INCR", "n")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	stopAndWait(t, s)

	if got := s.ElementsProcessed(); got != 500 {
		t.Errorf("expected 500 elements processed, got %d", got)
	}
	if got := len(store.Commands()); got != 1000 {
		t.Errorf("expected 1000 commands, got %d", got)
	}
}

func TestSenderPipelineBound(t *testing.T) {
	for _, limit := range []int{0, 10} {
		t.Run("limit-"+strconv.Itoa(limit), func(t *testing.T) {
			store := newFakeStore()
			config := testConfig()
			config.MaxPendingReplies = limit
			s := NewSender(0, config, store.factory())
			startRunning(t, s)

			for i := 0; i < 1000; i++ {
				if err := s.Enqueue("db1", resp.SerializeCommand("SET", "k", "v")); err != nil {
					t.Fatalf("Enqueue failed: %v", err)
				}
			}
			stopAndWait(t, s)

			want := limit
			if want == 0 {
				want = 200
			}
			if got := store.MaxPending(); got != want {
				t.Errorf("expected at most %d outstanding replies to be reached, got %d", want, got)
			}
		})
	}
}

func TestSenderCountsErrorReplies(t *testing.T) {
	store := newFakeStore()
	s := NewSender(0, testConfig(), store.factory())
	startRunning(t, s)

	_ = s.Enqueue("db0", resp.SerializeCommand("BAD"))
	_ = s.Enqueue("db0", resp.SerializeCommand("SET", "a", "b"))
	stopAndWait(t, s)

	snap := s.Stats().Snapshot()
	if snap.ReplyErrors != 1 {
		t.Errorf("expected 1 reply error, got %d", snap.ReplyErrors)
	}
	if snap.Sent != 2 {
		t.Errorf("expected 2 sent, got %d", snap.Sent)
	}
}

// --------------------------------------------------------------------------
// Database selection
// --------------------------------------------------------------------------

func TestParseDBIndex(t *testing.T) {
	valid := map[string]string{"db0": "0", "db3": "3", "db15": "15", "db007": "007"}
	for name, want := range valid {
		got, err := ParseDBIndex(name)
		if err != nil || got != want {
			t.Errorf("ParseDBIndex(%q) = %q, %v; expected %q", name, got, err, want)
		}
	}

	for _, name := range []string{"", "d", "db", "x1", "dbabc", "db1a", "DB1", "db-1"} {
		if _, err := ParseDBIndex(name); !errors.Is(err, ErrInvalidDBName) {
			t.Errorf("ParseDBIndex(%q): expected ErrInvalidDBName, got %v", name, err)
		}
	}
}

func TestSenderInvalidDBNameIsFatal(t *testing.T) {
	for _, name := range []string{"x1", "dbabc", "db", "d"} {
		t.Run(name, func(t *testing.T) {
			store := newFakeStore()
			rec := &dropRecorder{}
			s := NewSender(0, testConfig(), store.factory())
			s.OnDrop(rec.handler)

			_ = s.Enqueue(name, resp.SerializeCommand("SET", "a", "b"))
			_ = s.Enqueue("db1", resp.SerializeCommand("SET", "c", "d"))
			s.Start(context.Background())

			err := s.Wait()
			if !IsFatal(err) || !errors.Is(err, ErrInvalidDBName) {
				t.Fatalf("expected fatal ErrInvalidDBName, got %v", err)
			}
			if s.State() != StateStopped {
				t.Errorf("expected state %s, got %s", StateStopped, s.State())
			}
			if rec.Len() != 2 {
				t.Errorf("expected both entries to be reported as dropped, got %d", rec.Len())
			}
			if len(store.Commands()) != 0 {
				t.Errorf("expected no commands to be sent, got %v", store.Commands())
			}
		})
	}
}

// TestSenderFatalErrorDrainsReplies makes sure replies of commands written before a
// fatal error are read before the connection is closed
func TestSenderFatalErrorDrainsReplies(t *testing.T) {
	store := newFakeStore()
	s := NewSender(0, testConfig(), store.factory())

	_ = s.Enqueue("db0", resp.SerializeCommand("SET", "a", "b"))
	_ = s.Enqueue("db0", resp.SerializeCommand("BAD"))
	_ = s.Enqueue("x1", resp.SerializeCommand("SET", "c", "d"))
	s.Start(context.Background())

	if err := s.Wait(); !IsFatal(err) {
		t.Fatalf("expected a fatal error, got %v", err)
	}
	if got := len(store.Commands()); got != 4 {
		t.Fatalf("expected 4 commands before the fatal entry, got %d", got)
	}
	if got := store.Unread(); got != 0 {
		t.Errorf("expected all replies to be read before close, %d were left", got)
	}
	if got := s.Stats().Snapshot().ReplyErrors; got != 1 {
		t.Errorf("expected the error reply to be counted, got %d", got)
	}
	if got := s.Stats().Snapshot().Pending; got != 0 {
		t.Errorf("expected no pending replies, got %d", got)
	}
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

func TestSenderAuthentication(t *testing.T) {
	tests := []struct {
		name        string
		remote      string
		configured  string
		expectedErr error
	}{
		{name: "no password", remote: "", configured: ""},
		{name: "matching password", remote: "secret", configured: "secret"},
		{name: "wrong password", remote: "secret", configured: "wrong", expectedErr: ErrInvalidPassword},
		{name: "missing password", remote: "secret", configured: "", expectedErr: ErrAuthRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.password = tt.remote
			config := testConfig()
			config.Password = tt.configured
			s := NewSender(0, config, store.factory())

			if tt.expectedErr == nil {
				startRunning(t, s)
				stopAndWait(t, s)
				return
			}

			s.Start(context.Background())
			err := s.Wait()
			if !IsFatal(err) || !errors.Is(err, tt.expectedErr) {
				t.Fatalf("expected fatal %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestSenderDatabaseCount(t *testing.T) {
	tests := []struct {
		remote      string
		expected    int
		expectedErr error
	}{
		{remote: "8", expected: 16, expectedErr: ErrDatabaseCount},
		{remote: "16", expected: 16},
		{remote: "32", expected: 16},
		{remote: "abc", expected: 1, expectedErr: ErrMalformedReply},
		{remote: "", expected: 1, expectedErr: ErrMalformedReply},
	}

	for _, tt := range tests {
		t.Run(tt.remote+"/"+strconv.Itoa(tt.expected), func(t *testing.T) {
			store := newFakeStore()
			store.databases = tt.remote
			config := testConfig()
			config.ExpectedDatabases = tt.expected
			s := NewSender(0, config, store.factory())

			if tt.expectedErr == nil {
				startRunning(t, s)
				stopAndWait(t, s)
				return
			}

			s.Start(context.Background())
			err := s.Wait()
			if !IsFatal(err) || !errors.Is(err, tt.expectedErr) {
				t.Fatalf("expected fatal %v, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestSenderRetriesConnect(t *testing.T) {
	store := newFakeStore()
	store.connectFailures = 3
	s := NewSender(0, testConfig(), store.factory())
	startRunning(t, s)
	stopAndWait(t, s)

	if store.Connects() != 1 {
		t.Errorf("expected 1 successful connect, got %d", store.Connects())
	}
	if got := s.Stats().Snapshot().Reconnects; got != 0 {
		t.Errorf("expected the first connect not to count as reconnect, got %d", got)
	}
}

// --------------------------------------------------------------------------
// Failure handling
// --------------------------------------------------------------------------

func TestSenderReconnectsOnSendFailure(t *testing.T) {
	store := newFakeStore()
	s := NewSender(0, testConfig(), store.factory())
	startRunning(t, s)

	store.set(func(s *fakeStore) { s.failCommands = 1 })
	_ = s.Enqueue("db1", resp.SerializeCommand("SET", "a", "b"))
	waitFor(t, "command", func() bool { return len(store.Commands()) == 2 })
	stopAndWait(t, s)

	cmds := store.Commands()
	if cmds[0] != "SELECT 1" || cmds[1] != "SET a b" {
		t.Errorf("unexpected commands after reconnect: %v", cmds)
	}
	if store.Connects() != 2 {
		t.Errorf("expected 2 connects, got %d", store.Connects())
	}
	snap := s.Stats().Snapshot()
	if snap.Reconnects != 1 || snap.Dropped != 0 {
		t.Errorf("expected 1 reconnect and no drops, got %d/%d", snap.Reconnects, snap.Dropped)
	}
}

func TestSenderDropsAfterSendAttempts(t *testing.T) {
	store := newFakeStore()
	rec := &dropRecorder{}
	s := NewSender(0, testConfig(), store.factory())
	s.OnDrop(rec.handler)
	startRunning(t, s)

	store.set(func(s *fakeStore) { s.failCommands = 3 })
	_ = s.Enqueue("db0", resp.SerializeCommand("SET", "lost", "1"))
	_ = s.Enqueue("db0", resp.SerializeCommand("SET", "kept", "2"))
	waitFor(t, "second command", func() bool { return len(store.Commands()) == 2 })

	if s.State() != StateRunning {
		t.Errorf("expected sender to keep running, got %s", s.State())
	}
	stopAndWait(t, s)

	errs := rec.Errs()
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 dropped entry, got %d", len(errs))
	}
	if !errors.Is(errs[0], ErrSendFailed) || IsFatal(errs[0]) {
		t.Errorf("expected recoverable ErrSendFailed, got %v", errs[0])
	}
	if got := store.Connects(); got != 4 {
		t.Errorf("expected 1 connect plus 3 reconnects, got %d", got)
	}
	if cmds := store.Commands(); cmds[1] != "SET kept 2" {
		t.Errorf("unexpected commands: %v", cmds)
	}
}

func TestSenderLivenessCheckReconnects(t *testing.T) {
	store := newFakeStore()
	config := testConfig()
	config.LivenessInterval = 0
	s := NewSender(0, config, store.factory())
	startRunning(t, s)

	_ = s.Enqueue("db0", resp.SerializeCommand("SET", "a", "1"))
	waitFor(t, "first command", func() bool { return len(store.Commands()) == 2 })

	store.kill()
	_ = s.Enqueue("db0", resp.SerializeCommand("SET", "b", "2"))
	waitFor(t, "second command", func() bool { return len(store.Commands()) == 4 })
	stopAndWait(t, s)

	if store.Connects() != 2 {
		t.Errorf("expected a reconnect after the dead connection, got %d connects", store.Connects())
	}
	snap := s.Stats().Snapshot()
	if snap.LastLivenessCheck.IsZero() {
		t.Error("expected liveness check timestamp to be set")
	}
	if snap.Dropped != 0 {
		t.Errorf("expected no drops, got %d", snap.Dropped)
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestSenderStopWhileDisconnected(t *testing.T) {
	store := newFakeStore()
	store.refuse = true
	rec := &dropRecorder{}
	s := NewSender(0, testConfig(), store.factory())
	s.OnDrop(rec.handler)

	for i := 0; i < 3; i++ {
		_ = s.Enqueue("db0", resp.SerializeCommand("SET", "k", "v"))
	}
	s.Start(context.Background())
	waitFor(t, "connecting", func() bool { return s.State() == StateConnecting })
	time.Sleep(10 * time.Millisecond)

	stopAndWait(t, s)
	if rec.Len() != 3 {
		t.Fatalf("expected 3 dropped entries, got %d", rec.Len())
	}
	for _, err := range rec.Errs() {
		if !errors.Is(err, ErrStopped) {
			t.Errorf("expected ErrStopped, got %v", err)
		}
	}
}

func TestSenderContextCancelAborts(t *testing.T) {
	store := newFakeStore()
	store.refuse = true
	rec := &dropRecorder{}
	s := NewSender(0, testConfig(), store.factory())
	s.OnDrop(rec.handler)

	_ = s.Enqueue("db0", resp.SerializeCommand("SET", "k", "v"))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	waitFor(t, "connecting", func() bool { return s.State() == StateConnecting })
	cancel()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("sender did not stop after context cancel")
	}
	if err := s.Wait(); err != nil {
		t.Errorf("expected nil error after cancel, got %v", err)
	}
	if rec.Len() != 1 {
		t.Errorf("expected the queued entry to be dropped, got %d", rec.Len())
	}
}

func TestSenderRunTwice(t *testing.T) {
	store := newFakeStore()
	s := NewSender(0, testConfig(), store.factory())
	startRunning(t, s)

	if err := s.Run(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	stopAndWait(t, s)
}

func TestStateString(t *testing.T) {
	if StateValidatingTarget.String() != "validating-target" {
		t.Errorf("unexpected string: %s", StateValidatingTarget)
	}
	if State(42).String() != "unknown" {
		t.Errorf("unexpected string for unknown state: %s", State(42))
	}
}
