package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// Notifier accepts messages for asynchronous delivery.
type Notifier interface {
	Notify(msg Message)
}

// notificationActor delivers one message at a time through the mailer.
type notificationActor struct {
	mailer  Mailer
	timeout time.Duration
	logger  *zap.Logger
}

func (a *notificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Message:
		sendCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.mailer.Send(sendCtx, *msg); err != nil {
			a.logger.Warn("Failed to send notification",
				zap.String("kind", msg.Kind),
				zap.Uint("order_id", msg.OrderID),
				zap.Error(err))
			return
		}
		a.logger.Debug("Notification sent",
			zap.String("kind", msg.Kind),
			zap.Uint("order_id", msg.OrderID))

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped")
	}
}

// Dispatcher hands messages to a notification actor. Notify never blocks on
// delivery and never reports delivery errors to the caller.
type Dispatcher struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
	closed atomic.Bool
}

func NewDispatcher(mailer Mailer, timeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &notificationActor{mailer: mailer, timeout: timeout, logger: logger}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}

	return &Dispatcher{system: system, pid: pid, logger: logger}, nil
}

func (d *Dispatcher) Notify(msg Message) {
	if d.closed.Load() {
		d.logger.Warn("Dispatcher closed, dropping notification",
			zap.String("kind", msg.Kind),
			zap.Uint("order_id", msg.OrderID))
		return
	}
	d.system.Root.Send(d.pid, &msg)
}

// Close delivers what is already queued, then stops the actor.
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := d.system.Root.PoisonFuture(d.pid).Wait(); err != nil {
		return fmt.Errorf("failed to stop notification actor: %w", err)
	}
	d.system.Shutdown()
	return nil
}

// Discard is a Notifier that drops every message.
type Discard struct{}

func (Discard) Notify(Message) {}
