// Package scheduler runs background work off the request path
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/amirphl/leadbridge/app/dto"
	businessflow "github.com/amirphl/leadbridge/business_flow"
	"github.com/amirphl/leadbridge/config"
)

// QueueMetrics receives queue health signals
type QueueMetrics interface {
	RecordQueueDropped()
	SetQueueDepth(n int)
}

// UpdateDispatcher feeds acknowledged Telegram updates to a fixed pool of
// workers through a bounded queue. When the queue is full new updates are
// dropped and logged.
type UpdateDispatcher struct {
	flow    businessflow.TelegramUpdateFlow
	queue   chan *dto.TelegramUpdate
	workers int
	timeout time.Duration
	metrics QueueMetrics
	logger  *log.Logger

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewUpdateDispatcher(flow businessflow.TelegramUpdateFlow, cfg config.WebhookConfig, metrics QueueMetrics, logger *log.Logger) *UpdateDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &UpdateDispatcher{
		flow:    flow,
		queue:   make(chan *dto.TelegramUpdate, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.ProcessTimeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Start launches the workers. The returned function stops accepting updates,
// drains the queue and waits for the workers to finish.
func (d *UpdateDispatcher) Start(parent context.Context) func() {
	// in-flight updates finish even after parent is cancelled
	base := context.WithoutCancel(parent)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			for update := range d.queue {
				d.setDepth()
				d.process(base, id, update)
			}
		}(i)
	}

	d.logger.Printf("dispatcher: started %d workers (queue=%d)", d.workers, cap(d.queue))

	return func() {
		d.stopOnce.Do(func() {
			d.mu.Lock()
			d.closed = true
			close(d.queue)
			d.mu.Unlock()
			d.wg.Wait()
			d.logger.Printf("dispatcher: stopped")
		})
	}
}

// Enqueue hands update to the workers without blocking. It reports false when
// the update was dropped.
func (d *UpdateDispatcher) Enqueue(update *dto.TelegramUpdate) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Printf("dispatcher: update %d dropped: dispatcher stopped", updateID(update))
		d.recordDropped()
		return false
	}

	select {
	case d.queue <- update:
		d.setDepth()
		return true
	default:
		d.logger.Printf("dispatcher: update %d dropped: queue full (%d)", updateID(update), cap(d.queue))
		d.recordDropped()
		return false
	}
}

// Pending returns the number of queued updates
func (d *UpdateDispatcher) Pending() int {
	return len(d.queue)
}

func (d *UpdateDispatcher) process(base context.Context, worker int, update *dto.TelegramUpdate) {
	ctx, cancel := context.WithTimeout(base, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("dispatcher: worker %d panic on update %d: %v", worker, updateID(update), r)
		}
	}()

	result := d.flow.HandleUpdate(ctx, update)
	if result.Outcome == businessflow.OutcomeIgnored || result.Outcome == businessflow.OutcomeNoAction {
		return
	}
	d.logger.Printf("dispatcher: update %d chat %s outcome=%s reply=%s errors=%d",
		updateID(update), result.ChatID, result.Outcome, result.ReplyKind, len(result.Errors))
}

func (d *UpdateDispatcher) recordDropped() {
	if d.metrics != nil {
		d.metrics.RecordQueueDropped()
	}
}

func (d *UpdateDispatcher) setDepth() {
	if d.metrics != nil {
		d.metrics.SetQueueDepth(len(d.queue))
	}
}

func updateID(u *dto.TelegramUpdate) int64 {
	if u == nil {
		return 0
	}
	return u.UpdateID
}
