package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentReply struct {
	conversation string
	reply        Reply
}

// mockTransport is a mock implementation of Transport for testing
type mockTransport struct {
	mu       sync.Mutex
	handler  func(Event)
	sent     []sentReply
	attempts int
	failures []error // returned by successive Send calls before succeeding
	always   error   // returned by every Send call when set
	startErr error
	stopped  bool
}

func (m *mockTransport) Name() string { return "mock" }

func (m *mockTransport) Start(handler func(Event)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.handler = handler
	return nil
}

func (m *mockTransport) Send(_ context.Context, conversation string, reply Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.always != nil {
		return m.always
	}
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		return err
	}
	m.sent = append(m.sent, sentReply{conversation: conversation, reply: reply})
	return nil
}

func (m *mockTransport) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockTransport) snapshot() ([]sentReply, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentReply, len(m.sent))
	copy(out, m.sent)
	return out, m.attempts
}

func newTestEngine(t *testing.T, transport *mockTransport, opts EngineOptions, extra ...Command) *Engine {
	t.Helper()

	d, _ := newTestDispatcher(t, Deps{}, extra...)
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	}
	log, _ := test.NewNullLogger()
	opts.Log = log

	e := NewEngine(transport, d, opts)
	t.Cleanup(func() {
		e.Stop()
		e.wg.Wait()
	})
	return e
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 350*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 350*time.Millisecond, p.Backoff(9))
}

func TestEngine_DeliversReply(t *testing.T) {
	transport := &mockTransport{}
	e := newTestEngine(t, transport, EngineOptions{})

	e.HandleEvent(command("calc", "2+2*3"))

	require.Eventually(t, func() bool {
		sent, _ := transport.snapshot()
		return len(sent) == 1
	}, time.Second, 5*time.Millisecond)

	sent, _ := transport.snapshot()
	assert.Equal(t, testSource.Conversation, sent[0].conversation)
	assert.Contains(t, sent[0].reply.Text, "= 8")
}

func TestEngine_UnmatchedCallback_SendsNothing(t *testing.T) {
	transport := &mockTransport{}
	e := newTestEngine(t, transport, EngineOptions{})

	e.HandleEvent(CallbackPress{Source: testSource, Tag: "unregistered"})
	e.HandleEvent(command("help"))

	require.Eventually(t, func() bool {
		_, attempts := transport.snapshot()
		return attempts == 1
	}, time.Second, 5*time.Millisecond)

	sent, _ := transport.snapshot()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].reply.Text, "Detailed Help")
}

func TestEngine_PreservesConversationOrder(t *testing.T) {
	// Earlier events sleep longer, so only a FIFO keeps replies in order.
	seq := Command{Name: "seq", Handler: func(_ context.Context, _ Deps, ev Event) (Reply, error) {
		arg := commandArgs(ev)[0]
		var n int
		fmt.Sscanf(arg, "%d", &n)
		time.Sleep(time.Duration(10-n) * time.Millisecond)
		return Reply{Text: arg}, nil
	}}
	transport := &mockTransport{}
	e := newTestEngine(t, transport, EngineOptions{}, seq)

	for i := 0; i < 10; i++ {
		e.HandleEvent(command("seq", fmt.Sprint(i)))
	}

	require.Eventually(t, func() bool {
		sent, _ := transport.snapshot()
		return len(sent) == 10
	}, 2*time.Second, 5*time.Millisecond)

	sent, _ := transport.snapshot()
	for i, s := range sent {
		assert.Equal(t, fmt.Sprint(i), s.reply.Text)
	}
}

func TestEngine_ConversationsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	block := Command{Name: "block", Handler: func(ctx context.Context, _ Deps, _ Event) (Reply, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return Reply{Text: "unblocked"}, nil
	}}
	transport := &mockTransport{}
	e := newTestEngine(t, transport, EngineOptions{}, block)

	blocked := command("block")
	blocked.Conversation = "slow-chat"
	e.HandleEvent(blocked)

	other := command("info")
	other.Conversation = "fast-chat"
	e.HandleEvent(other)

	require.Eventually(t, func() bool {
		sent, _ := transport.snapshot()
		return len(sent) == 1
	}, time.Second, 5*time.Millisecond)

	sent, _ := transport.snapshot()
	assert.Equal(t, "fast-chat", sent[0].conversation)
	assert.Equal(t, 2, e.ActiveConversations())
	close(release)
}

func TestEngine_RetriesTransientErrors(t *testing.T) {
	transport := &mockTransport{failures: []error{errors.New("503"), errors.New("503")}}
	e := newTestEngine(t, transport, EngineOptions{})

	err := e.deliver(context.Background(), "c", Reply{Text: "x"})
	assert.NoError(t, err)

	sent, attempts := transport.snapshot()
	assert.Equal(t, 3, attempts)
	assert.Len(t, sent, 1)
}

func TestEngine_StopsAfterMaxAttempts(t *testing.T) {
	transport := &mockTransport{always: errors.New("network down")}
	e := newTestEngine(t, transport, EngineOptions{})

	err := e.deliver(context.Background(), "c", Reply{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")

	_, attempts := transport.snapshot()
	assert.Equal(t, 3, attempts)
}

func TestEngine_PermanentErrorNotRetried(t *testing.T) {
	cause := errors.New("chat not found")
	transport := &mockTransport{always: Permanent(cause)}
	e := newTestEngine(t, transport, EngineOptions{})

	err := e.deliver(context.Background(), "c", Reply{Text: "x"})
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsPermanent(err))

	_, attempts := transport.snapshot()
	assert.Equal(t, 1, attempts)
}

func TestEngine_RetryStopsOnCancel(t *testing.T) {
	transport := &mockTransport{always: errors.New("flaky")}
	e := newTestEngine(t, transport, EngineOptions{
		Retry: RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := e.deliver(ctx, "c", Reply{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)

	_, attempts := transport.snapshot()
	assert.Equal(t, 1, attempts)
}

func TestEngine_IdleConversationExits(t *testing.T) {
	transport := &mockTransport{}
	e := newTestEngine(t, transport, EngineOptions{IdleTimeout: 20 * time.Millisecond})

	e.HandleEvent(command("help"))
	require.Eventually(t, func() bool {
		sent, _ := transport.snapshot()
		return len(sent) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return e.ActiveConversations() == 0
	}, time.Second, 5*time.Millisecond)

	// a new event after idle exit starts a fresh worker
	e.HandleEvent(command("info"))
	assert.Eventually(t, func() bool {
		sent, _ := transport.snapshot()
		return len(sent) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_Run(t *testing.T) {
	transport := &mockTransport{}
	e := newTestEngine(t, transport, EngineOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return transport.handler != nil
	}, time.Second, 5*time.Millisecond)

	transport.mu.Lock()
	handler := transport.handler
	transport.mu.Unlock()
	handler(command("time"))

	require.Eventually(t, func() bool {
		sent, _ := transport.snapshot()
		return len(sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	assert.True(t, transport.stopped)

	// events after shutdown are dropped
	handler(command("time"))
	_, attempts := transport.snapshot()
	assert.Equal(t, 1, attempts)
}

func TestEngine_Run_StartError(t *testing.T) {
	transport := &mockTransport{startErr: errors.New("bad token")}
	e := newTestEngine(t, transport, EngineOptions{})

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start mock transport")
}
