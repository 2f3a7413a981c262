// Package eventbus delivers post-commit events to background handlers with bounded retry.
package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/studyplan/internal/entity"
	"github.com/eslsoft/studyplan/internal/infrastructure/config"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("eventbus: dispatcher closed")

// ErrQueueFull is returned by Publish when the buffer stays full for PublishTimeout.
var ErrQueueFull = errors.New("eventbus: queue full")

const defaultPublishTimeout = 100 * time.Millisecond

// Handler processes one event. A returned error schedules a retry.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event entity.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, event entity.Event) error
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) Handle(ctx context.Context, event entity.Event) error { return h.Fn(ctx, event) }

// Subscription binds a handler to a topic.
type Subscription struct {
	Topic   string
	Handler Handler
}

// Options tunes the dispatcher.
type Options struct {
	Workers     int
	Buffer      int
	MaxAttempts int
	Backoff     time.Duration
	// MaxBackoff caps the exponential delay. Zero means 32x Backoff.
	MaxBackoff time.Duration
	// PublishTimeout bounds how long Publish waits for buffer space.
	// Zero means 100ms; a negative value never waits.
	PublishTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Buffer < 0 {
		o.Buffer = 0
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 32 * o.Backoff
	}
	if o.PublishTimeout == 0 {
		o.PublishTimeout = defaultPublishTimeout
	}
	return o
}

// Dispatcher fans events out to subscribed handlers on a fixed worker pool.
type Dispatcher struct {
	opts     Options
	log      logrus.FieldLogger
	handlers map[string][]Handler

	queue  chan entity.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts a dispatcher with its workers running. Subscriptions are fixed for its lifetime.
func New(opts Options, log logrus.FieldLogger, subs ...Subscription) *Dispatcher {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		opts:     opts,
		log:      log.WithField("component", "eventbus"),
		handlers: make(map[string][]Handler),
		queue:    make(chan entity.Event, opts.Buffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, s := range subs {
		if s.Handler == nil {
			continue
		}
		d.handlers[s.Topic] = append(d.handlers[s.Topic], s.Handler)
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// NewDispatcher builds a dispatcher from configuration.
func NewDispatcher(cfg *config.Config, log *logrus.Logger, subs []Subscription) (*Dispatcher, func()) {
	d := New(Options{
		Workers:        cfg.Events.Workers,
		Buffer:         cfg.Events.Buffer,
		MaxAttempts:    cfg.Events.MaxAttempts,
		Backoff:        cfg.Events.Backoff,
		PublishTimeout: cfg.Events.PublishTimeout,
	}, log, subs...)
	return d, d.Close
}

// Publish enqueues an event. While the buffer is full it waits at most
// PublishTimeout, then drops the event with ErrQueueFull.
func (d *Dispatcher) Publish(ctx context.Context, event entity.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- event:
		return nil
	default:
	}
	if d.opts.PublishTimeout < 0 {
		return ErrQueueFull
	}
	timer := time.NewTimer(d.opts.PublishTimeout)
	defer timer.Stop()
	select {
	case d.queue <- event:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits until every queued event has been handled,
// retries included.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}

// Abort cancels in-flight handlers and pending retries, then closes the dispatcher.
func (d *Dispatcher) Abort() {
	d.cancel()
	d.Close()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for event := range d.queue {
		for _, h := range d.handlers[event.Topic()] {
			d.deliver(h, event)
		}
	}
}

func (d *Dispatcher) deliver(h Handler, event entity.Event) {
	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if err = h.Handle(d.ctx, event); err == nil {
			return
		}
		if attempt == d.opts.MaxAttempts {
			break
		}
		d.log.WithFields(logrus.Fields{
			"handler": h.Name(),
			"topic":   event.Topic(),
			"attempt": attempt,
		}).WithError(err).Debug("event handler failed, retrying")
		if !d.sleep(d.delay(attempt)) {
			break
		}
	}
	d.log.WithFields(logrus.Fields{
		"handler":    h.Name(),
		"topic":      event.Topic(),
		"learner_id": event.Learner(),
	}).WithError(entity.Integration(h.Name(), err)).Error("integration failure")
}

func (d *Dispatcher) delay(attempt int) time.Duration {
	if attempt > 32 {
		return d.opts.MaxBackoff
	}
	delay := d.opts.Backoff << (attempt - 1)
	if delay > d.opts.MaxBackoff || delay < 0 {
		delay = d.opts.MaxBackoff
	}
	return delay
}

func (d *Dispatcher) sleep(delay time.Duration) bool {
	if delay <= 0 {
		return d.ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}
