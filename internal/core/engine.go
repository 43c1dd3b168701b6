package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keepmind9/featurebot/internal/logger"
	"github.com/keepmind9/featurebot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Transport connects the engine to one messaging platform
type Transport interface {
	// Name returns the platform name, e.g. "telegram"
	Name() string
	// Start begins receiving updates; handler is called for every classified event
	Start(handler func(Event)) error
	// Send delivers a reply to a conversation
	Send(ctx context.Context, conversation string, reply Reply) error
	// Stop shuts the transport down
	Stop() error
}

// RetryPolicy bounds reply delivery attempts
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  constants.DefaultSendAttempts,
		InitialDelay: constants.DefaultRetryDelay,
		MaxDelay:     constants.DefaultMaxRetryDelay,
	}
}

// Backoff returns the wait after the given failed attempt (1-based). The delay
// doubles every attempt and is capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// EngineOptions tunes an Engine; zero values select defaults
type EngineOptions struct {
	Retry       RetryPolicy
	IdleTimeout time.Duration // how long a conversation worker lingers without events
	SendTimeout time.Duration // bound for a single send attempt
	Log         logrus.FieldLogger
}

// conversation is the FIFO of one chat. pending counts events handed to the
// worker but not yet processed and is guarded by Engine.mu.
type conversation struct {
	events  chan Event
	pending int
}

// Engine receives events from a transport, dispatches them in per-conversation
// order and delivers the replies.
type Engine struct {
	transport   Transport
	dispatcher  *Dispatcher
	retry       RetryPolicy
	idleTimeout time.Duration
	sendTimeout time.Duration
	log         logrus.FieldLogger

	mu            sync.Mutex               // guards conversations
	conversations map[string]*conversation // conversation ID -> queue
	wg            sync.WaitGroup           // running conversation workers
	ctx           context.Context          // cancelled on shutdown
	cancel        context.CancelFunc
}

// NewEngine creates a new Engine instance
func NewEngine(transport Transport, dispatcher *Dispatcher, opts EngineOptions) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = constants.DefaultConversationIdle
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = constants.DefaultSendTimeout
	}
	if opts.Log == nil {
		opts.Log = logger.Component("engine")
	}

	return &Engine{
		transport:     transport,
		dispatcher:    dispatcher,
		retry:         opts.Retry,
		idleTimeout:   opts.IdleTimeout,
		sendTimeout:   opts.SendTimeout,
		log:           opts.Log.WithField("platform", transport.Name()),
		conversations: make(map[string]*conversation),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run starts the transport and blocks until ctx is done or Stop is called
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("starting-featurebot-engine")

	if err := e.transport.Start(e.HandleEvent); err != nil {
		e.cancel()
		return fmt.Errorf("failed to start %s transport: %w", e.transport.Name(), err)
	}
	e.log.Info("transport-started")

	select {
	case <-ctx.Done():
		e.log.Info("engine-context-done")
	case <-e.ctx.Done():
	}
	return e.shutdown()
}

// Stop asks a running engine to shut down
func (e *Engine) Stop() {
	e.cancel()
}

func (e *Engine) shutdown() error {
	e.log.Info("stopping-featurebot-engine")
	e.cancel()

	err := e.transport.Stop()
	if err != nil {
		e.log.WithField("error", err).Error("failed-to-stop-transport")
	}

	e.wg.Wait()
	e.log.Info("engine-stopped")
	if err != nil {
		return fmt.Errorf("failed to stop %s transport: %w", e.transport.Name(), err)
	}
	return nil
}

// HandleEvent queues ev on its conversation. Events of one conversation are
// handled strictly in arrival order; different conversations run concurrently.
func (e *Engine) HandleEvent(ev Event) {
	src := ev.EventSource()
	if e.ctx.Err() != nil {
		e.log.WithField("event_id", src.EventID).Warn("event-dropped-engine-stopping")
		return
	}

	e.mu.Lock()
	conv, ok := e.conversations[src.Conversation]
	if !ok {
		conv = &conversation{events: make(chan Event, constants.ConversationQueueSize)}
		e.conversations[src.Conversation] = conv
		e.wg.Add(1)
		go e.worker(src.Conversation, conv)
	}
	conv.pending++
	e.mu.Unlock()

	select {
	case conv.events <- ev:
	case <-e.ctx.Done():
		e.mu.Lock()
		conv.pending--
		e.mu.Unlock()
		e.log.WithField("event_id", src.EventID).Warn("event-dropped-engine-stopping")
	}
}

// ActiveConversations returns the number of running conversation workers
func (e *Engine) ActiveConversations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conversations)
}

func (e *Engine) worker(id string, conv *conversation) {
	defer e.wg.Done()

	log := e.log.WithField("conversation", id)
	log.Debug("conversation-worker-started")

	idle := time.NewTimer(e.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case ev := <-conv.events:
			e.process(ev)
			e.mu.Lock()
			conv.pending--
			e.mu.Unlock()
			idle.Reset(e.idleTimeout)

		case <-idle.C:
			e.mu.Lock()
			if conv.pending == 0 {
				delete(e.conversations, id)
				e.mu.Unlock()
				log.Debug("conversation-worker-idle-exit")
				return
			}
			e.mu.Unlock()
			idle.Reset(e.idleTimeout)

		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) process(ev Event) {
	src := ev.EventSource()
	reply, ok := e.dispatcher.Dispatch(e.ctx, ev)
	if !ok {
		return
	}

	if err := e.deliver(e.ctx, src.Conversation, reply); err != nil {
		e.log.WithFields(logrus.Fields{
			"event_id":     src.EventID,
			"conversation": src.Conversation,
			"error":        err,
		}).Error("failed-to-deliver-reply")
	}
}

// deliver sends reply, retrying transient failures with exponential backoff
func (e *Engine) deliver(ctx context.Context, conversation string, reply Reply) error {
	var err error
	attempt := 0
	for attempt < e.retry.MaxAttempts {
		attempt++

		sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
		err = e.transport.Send(sendCtx, conversation, reply)
		cancel()
		if err == nil {
			return nil
		}
		if IsPermanent(err) || attempt == e.retry.MaxAttempts {
			break
		}

		delay := e.retry.Backoff(attempt)
		e.log.WithFields(logrus.Fields{
			"conversation": conversation,
			"attempt":      attempt,
			"delay":        delay.String(),
			"error":        err,
		}).Warn("send-failed-retrying")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		}
	}
	return fmt.Errorf("send failed after %d attempt(s): %w", attempt, err)
}
