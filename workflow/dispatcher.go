package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/mpms/config"
)

// Dispatcher publishes change events off the request path. Messages are
// retried with exponential backoff and dropped after MaxAttempts.
type Dispatcher struct {
	Publisher Publisher
	Logger    *logrus.Logger

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	queue chan config.ChangeMessage
	wg    sync.WaitGroup
}

func NewDispatcher(publisher Publisher, logger *logrus.Logger, bufferSize int) *Dispatcher {
	if bufferSize < 1 {
		bufferSize = 100
	}
	return &Dispatcher{
		Publisher:      publisher,
		Logger:         logger,
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		queue:          make(chan config.ChangeMessage, bufferSize),
	}
}

// Enqueue never blocks; when the buffer is full the message is dropped.
func (d *Dispatcher) Enqueue(msg config.ChangeMessage) bool {
	select {
	case d.queue <- msg:
		return true
	default:
		d.Logger.WithFields(logrus.Fields{
			"field":          "Dispatcher",
			"reference_type": msg.ReferenceType,
			"reference_id":   msg.ReferenceId,
		}).Warn("change event queue full; dropping message")
		return false
	}
}

// Start runs the dispatcher in the background until ctx is done; what is
// still queued then is published once before Wait returns.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.queue:
			d.publish(ctx, msg)
		case <-ctx.Done():
			d.drain()
			return
		}
	}
}

// Wait blocks until the goroutine begun by Start has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-d.queue:
			d.publishOnce(ctx, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, msg config.ChangeMessage) {
	backoff := d.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := d.Publisher.Publish(ctx, msg)
		if err == nil {
			return
		}
		if attempt >= d.MaxAttempts {
			config.LogError(d.Logger, "workflow", "Dispatcher.publish", "max publish attempts exceeded", msg, err)
			return
		}
		select {
		case <-ctx.Done():
			d.publishOnce(context.Background(), msg)
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > d.MaxBackoff {
			backoff = d.MaxBackoff
		}
	}
}

func (d *Dispatcher) publishOnce(ctx context.Context, msg config.ChangeMessage) {
	if err := d.Publisher.Publish(ctx, msg); err != nil {
		config.LogError(d.Logger, "workflow", "Dispatcher.publishOnce", "publish on shutdown", msg, err)
	}
}
