package notification

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ErrQueueFull is logged when a confirmation cannot be queued.
var ErrQueueFull = errors.New("notification queue full")

// DispatcherConfig controls the asynchronous delivery pool.
type DispatcherConfig struct {
	Workers         int
	QueueSize       int
	MaxRetries      uint64
	InitialInterval time.Duration
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
}

func (c *DispatcherConfig) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
}

type job struct {
	msg Message
	lg  *zap.Logger
}

// Dispatcher delivers confirmation emails off the request path. Notify never
// blocks and never fails; delivery problems are retried with exponential
// backoff and finally logged.
type Dispatcher struct {
	mailer   Mailer
	composer *Composer
	cfg      DispatcherConfig

	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
}

// NewDispatcher creates a Dispatcher. Call Start before Notify-ed messages can
// be delivered and Stop to drain the queue.
func NewDispatcher(mailer Mailer, composer *Composer, cfg DispatcherConfig) *Dispatcher {
	cfg.setDefaults()
	return &Dispatcher{
		mailer:   mailer,
		composer: composer,
		cfg:      cfg,
		queue:    make(chan job, cfg.QueueSize),
	}
}

// Notify composes the confirmation email and queues it for delivery.
func (d *Dispatcher) Notify(ctx context.Context, conf Confirmation) {
	lg := zctx.From(ctx)
	msg := d.composer.Compose(conf)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		lg.Error("Dropping confirmation, dispatcher stopped",
			zap.String("transaction_id", conf.Transaction.ID),
		)
		return
	}

	select {
	case d.queue <- job{msg: msg, lg: lg}:
	default:
		lg.Error("Dropping confirmation",
			zap.Error(ErrQueueFull),
			zap.String("transaction_id", conf.Transaction.ID),
			zap.Strings("recipients", msg.Recipients),
		)
	}
}

// Pending returns the number of queued, undelivered confirmations.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Start launches the worker pool. Deliveries outlive ctx cancellation until
// Stop is called, so queued confirmations are not lost on shutdown.
func (d *Dispatcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	for range d.cfg.Workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.deliver(runCtx, j)
			}
		}()
	}
}

// Stop closes the queue and waits for queued messages to be delivered. When
// ctx expires first, in-flight retries are abandoned.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	if cancel != nil {
		cancel()
	}
	<-done
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.InitialInterval
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
		return d.mailer.Send(sendCtx, j.msg)
	}
	notify := func(err error, wait time.Duration) {
		j.lg.Warn("Confirmation delivery failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, d.cfg.MaxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		j.lg.Error("Confirmation delivery abandoned",
			zap.Error(err),
			zap.Int("attempts", attempt),
			zap.Strings("recipients", j.msg.Recipients),
			zap.String("template", j.msg.Template),
		)
		return
	}
	j.lg.Debug("Confirmation delivered",
		zap.Strings("recipients", j.msg.Recipients),
		zap.Int("attempts", attempt),
	)
}
