package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/interfaces"
	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

var (
	// ErrBufferFull is returned when the dispatcher cannot accept more events.
	ErrBufferFull = errors.New("event buffer full")

	// ErrDispatcherClosed is returned after Close.
	ErrDispatcherClosed = errors.New("event dispatcher closed")
)

const deliveryTimeout = 5 * time.Second

// AsyncPublisher queues stage events and delivers them from its own goroutine,
// so callers never wait on the broker.
type AsyncPublisher struct {
	next   interfaces.StageEventPublisher
	logger *zap.Logger

	events    chan models.StageChangedEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewAsyncPublisher(next interfaces.StageEventPublisher, buffer int, logger *zap.Logger) *AsyncPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &AsyncPublisher{
		next:   next,
		logger: logger,
		events: make(chan models.StageChangedEvent, buffer),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *AsyncPublisher) PublishStageChanged(_ context.Context, event models.StageChangedEvent) error {
	select {
	case <-p.done:
		return ErrDispatcherClosed
	default:
	}

	select {
	case p.events <- event:
		return nil
	default:
		p.logger.Warn("Dropping stage event",
			zap.String("session_id", event.SessionID),
			zap.String("stage", string(event.Stage)),
		)
		return ErrBufferFull
	}
}

// Close stops accepting events, delivers what is queued and waits.
func (p *AsyncPublisher) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *AsyncPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case evt := <-p.events:
			p.deliver(evt)
		case <-p.done:
			for {
				select {
				case evt := <-p.events:
					p.deliver(evt)
				default:
					return
				}
			}
		}
	}
}

func (p *AsyncPublisher) deliver(evt models.StageChangedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := p.next.PublishStageChanged(ctx, evt); err != nil {
		p.logger.Error("Error publishing stage event",
			zap.String("session_id", evt.SessionID),
			zap.String("stage", string(evt.Stage)),
			zap.Error(err),
		)
	}
}
