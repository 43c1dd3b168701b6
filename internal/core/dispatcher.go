package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/keepmind9/featurebot/internal/calc"
	"github.com/keepmind9/featurebot/internal/format"
	"github.com/keepmind9/featurebot/internal/logger"
	"github.com/keepmind9/featurebot/pkg/constants"
	"github.com/sirupsen/logrus"
)

// FileInspector looks up attachment metadata on the platform
type FileInspector interface {
	FileSize(ctx context.Context, fileID string) (int64, error)
}

// Deps is the explicit dependency bundle handed to every handler
type Deps struct {
	Log    logrus.FieldLogger
	Format *format.Formatter
	Calc   *calc.Evaluator
	Files  FileInspector    // nil when the transport reports sizes inline
	Now    func() time.Time // clock for /time
	Pick   func(n int) int  // random index in [0, n) for /joke
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Component("dispatcher")
	}
	if d.Format == nil {
		d.Format = format.New(format.TelegramMarkdown{}, "", "")
	}
	if d.Calc == nil {
		d.Calc = &calc.Evaluator{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Pick == nil {
		d.Pick = rand.IntN
	}
	return d
}

// Dispatcher resolves events to handlers and always produces a reply, except for
// button presses whose tag matches no action.
type Dispatcher struct {
	registry *Registry
	deps     Deps
	timeout  time.Duration
	echo     HandlerFunc
	photo    HandlerFunc
	document HandlerFunc
}

// NewDispatcher creates a Dispatcher. A zero timeout uses DefaultDispatchTimeout.
func NewDispatcher(registry *Registry, deps Deps, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = constants.DefaultDispatchTimeout
	}
	return &Dispatcher{
		registry: registry,
		deps:     deps.withDefaults(),
		timeout:  timeout,
		echo:     handleEcho,
		photo:    handlePhoto,
		document: handleDocument,
	}
}

// Dispatch runs the handler for ev once. The boolean is false when a callback tag
// matched nothing or ctx was cancelled; then no reply must be sent.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Reply, bool) {
	src := ev.EventSource()
	log := d.deps.Log.WithFields(logrus.Fields{
		"event_id":     src.EventID,
		"platform":     src.Platform,
		"conversation": src.Conversation,
		"user":         src.UserID,
	})

	switch e := ev.(type) {
	case TextCommand:
		cmd, ok := d.registry.Lookup(e.Name)
		if !ok {
			log.WithFields(logrus.Fields{
				"command": e.Name,
				"error":   ErrUnknownCommand,
			}).Info("unknown-command-received")
			return Reply{Text: d.deps.Format.UnknownCommand(e.Name)}, true
		}
		return d.invoke(ctx, log.WithField("command", e.Name), cmd.Name, cmd.Handler, ev)

	case CallbackPress:
		action, ok := ParseAction(e.Tag)
		if !ok {
			log.WithField("tag", e.Tag).Warn("callback-tag-not-recognized")
			return Reply{}, false
		}
		cmd, ok := d.registry.Lookup(action.Tag())
		if !ok {
			log.WithField("tag", e.Tag).Warn("callback-action-not-registered")
			return Reply{}, false
		}
		return d.invoke(ctx, log.WithField("callback", e.Tag), cmd.Name, cmd.Handler, ev)

	case PlainText:
		return d.invoke(ctx, log, "echo", d.echo, ev)

	case Photo:
		return d.invoke(ctx, log, "photo", d.photo, ev)

	case Document:
		return d.invoke(ctx, log, "document", d.document, ev)

	default:
		log.WithField("event_type", fmt.Sprintf("%T", ev)).Error("unsupported-event-type")
		return Reply{Text: d.deps.Format.HandlerFailure()}, true
	}
}

type handlerResult struct {
	reply Reply
	err   error
}

// invoke runs h under the dispatch timeout, converting errors, panics and
// timeouts into user visible replies. When ctx is cancelled (shutdown) there is
// nobody left to answer and the boolean is false.
func (d *Dispatcher) invoke(ctx context.Context, log logrus.FieldLogger, name string, h HandlerFunc, ev Event) (Reply, bool) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	deps := d.deps
	deps.Log = log.WithField("handler", name)

	start := time.Now()
	done := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerResult{err: fmt.Errorf("%w: panic: %v", ErrHandlerFailure, r)}
			}
		}()
		reply, err := h(ctx, deps, ev)
		done <- handlerResult{reply: reply, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			log.WithFields(logrus.Fields{
				"handler":     name,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("handler-completed")
			return res.reply, true
		}
		if ctx.Err() == nil {
			log.WithFields(logrus.Fields{
				"handler": name,
				"error":   res.err,
			}).Error("handler-failed")
			return Reply{Text: d.deps.Format.HandlerFailure()}, true
		}
		// the handler gave up because ctx ended
	case <-ctx.Done():
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		log.WithFields(logrus.Fields{
			"handler": name,
			"error":   ctx.Err(),
		}).Info("handler-cancelled")
		return Reply{}, false
	}
	log.WithFields(logrus.Fields{
		"handler": name,
		"timeout": d.timeout.String(),
		"error":   ErrHandlerTimeout,
	}).Error("handler-timed-out")
	return Reply{Text: d.deps.Format.HandlerTimeout()}, true
}
