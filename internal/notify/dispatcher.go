package notify

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"tempo-bot/internal/logger"
	"tempo-bot/internal/metrics"
)

type DispatcherOption func(*Dispatcher)

func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Notification, n)
		}
	}
}

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithEmergencyTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.emergencyTimeout = t
		}
	}
}

// Dispatcher отправляет уведомления в фоне, не блокируя вызывающий код
type Dispatcher struct {
	sender           Sender
	policy           RetryPolicy
	emergencyTimeout time.Duration
	workers          int
	queue            chan Notification
	logger           logger.Logger
}

func NewDispatcher(sender Sender, policy RetryPolicy, log logger.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:           sender,
		policy:           policy,
		emergencyTimeout: 10 * time.Second,
		workers:          4,
		queue:            make(chan Notification, 256),
		logger:           log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify ставит уведомление в очередь. Возвращает false, если очередь переполнена.
func (d *Dispatcher) Notify(n Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		d.logger.WithField("kind", string(n.Kind)).Warnf("Notification queue full, dropping message for %s", n.UserName)
		metrics.RecordNotification(string(n.Kind), "dropped")
		return false
	}
}

// Run обрабатывает очередь до отмены ctx
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case n := <-d.queue:
					d.Deliver(ctx, n)
				}
			}
		})
	}
	err := g.Wait()
	if pending := len(d.queue); pending > 0 {
		d.logger.Warnf("Dispatcher stopped with %d undelivered notifications", pending)
	}
	return err
}

// Deliver отправляет уведомление с повторами. Если все попытки неудачны,
// отправляется упрощенное аварийное сообщение.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification) error {
	log := d.logger.WithFields(map[string]interface{}{"kind": string(n.Kind), "user_id": n.UserID})

	err := Retry(ctx, d.policy, func(actx context.Context) error {
		return d.sender.Send(actx, n)
	})
	if err == nil {
		metrics.RecordNotification(string(n.Kind), "delivered")
		return nil
	}
	log.Warnf("Notification failed after retries: %v", err)

	if ctx.Err() != nil {
		metrics.RecordNotification(string(n.Kind), "failed")
		return err
	}

	emergency := n
	emergency.Emergency = true
	ectx, cancel := context.WithTimeout(ctx, d.emergencyTimeout)
	defer cancel()
	if eerr := d.sender.Send(ectx, emergency); eerr != nil {
		log.Errorf("Emergency notification failed: %v", eerr)
		metrics.RecordNotification(string(n.Kind), "failed")
		return errors.Join(err, eerr)
	}

	log.Info("Emergency notification sent")
	metrics.RecordNotification(string(n.Kind), "emergency")
	return nil
}
