package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/eapache/queue/v2"

	"github.com/GokulKGit/quiz-API/errors"
	"github.com/GokulKGit/quiz-API/server/metrics"
)

// QueueMiddleware admits generation requests in FIFO order.
//
// At most MaxConcurrent requests run the wrapped handler at once. Requests
// arriving while every slot is taken wait in a queue of at most MaxSize
// entries; beyond that they are rejected with 503. A waiting request whose
// context ends leaves the queue without ever taking a slot.
type QueueMiddleware struct {
	mu            sync.Mutex
	waiting       *queue.Queue[*waiter]
	active        int
	maxConcurrent int
	maxSize       int64
	closed        bool
	metrics       *metrics.Metrics
}

// waiter is one queued request. granted is guarded by QueueMiddleware.mu.
type waiter struct {
	ready   chan struct{}
	granted bool
}

// QueueConfig defines the operational parameters for the queue middleware.
type QueueConfig struct {
	MaxConcurrent int              // Requests processed at once
	MaxSize       int64            // Requests allowed to wait
	Metrics       *metrics.Metrics // Optional
}

// NewQueueMiddleware initializes a new queue middleware with the given configuration.
func NewQueueMiddleware(cfg QueueConfig) *QueueMiddleware {
	qm := &QueueMiddleware{
		waiting: queue.New[*waiter](),
		metrics: cfg.Metrics,
	}
	qm.SetLimits(cfg.MaxConcurrent, cfg.MaxSize)
	return qm
}

// SetLimits updates both limits. Raising MaxConcurrent admits waiting
// requests immediately; lowering it lets running requests finish.
func (qm *QueueMiddleware) SetLimits(maxConcurrent int, maxSize int64) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxSize < 0 {
		maxSize = 0
	}

	qm.mu.Lock()
	defer qm.mu.Unlock()
	qm.maxConcurrent = maxConcurrent
	qm.maxSize = maxSize
	qm.promoteLocked()
}

// promoteLocked hands free slots to waiting requests in arrival order.
func (qm *QueueMiddleware) promoteLocked() {
	for qm.active < qm.maxConcurrent && qm.waiting.Length() > 0 {
		w := qm.waiting.Remove()
		w.granted = true
		qm.active++
		close(w.ready)
	}
	qm.updateGaugesLocked()
}

func (qm *QueueMiddleware) updateGaugesLocked() {
	if qm.metrics == nil {
		return
	}
	qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(qm.waiting.Length()))
	qm.metrics.ActiveRequests.WithLabelValues("processing").Set(float64(qm.active))
}

// acquire takes a slot, waiting in line if needed. It returns false with
// the error to send when the request must not proceed.
func (qm *QueueMiddleware) acquire(ctx context.Context) (bool, *errors.QuizError) {
	requestID := GetRequestID(ctx)

	qm.mu.Lock()
	if qm.closed {
		qm.mu.Unlock()
		return false, errors.NewUnavailableError(requestID, "server is shutting down")
	}
	if qm.active < qm.maxConcurrent && qm.waiting.Length() == 0 {
		qm.active++
		qm.updateGaugesLocked()
		qm.mu.Unlock()
		return true, nil
	}
	if int64(qm.waiting.Length()) >= qm.maxSize {
		qm.mu.Unlock()
		if qm.metrics != nil {
			qm.metrics.ErrorsTotal.WithLabelValues("queue_full").Inc()
		}
		return false, errors.NewUnavailableError(requestID, "request queue is full")
	}

	w := &waiter{ready: make(chan struct{})}
	qm.waiting.Add(w)
	qm.updateGaugesLocked()
	qm.mu.Unlock()

	select {
	case <-w.ready:
		return true, nil
	case <-ctx.Done():
		qm.mu.Lock()
		granted := w.granted
		if !granted {
			qm.removeLocked(w)
		}
		qm.mu.Unlock()
		if granted {
			// The slot arrived together with the cancellation.
			qm.release()
		}
		return false, errors.FromError(requestID, ctx.Err(), 0)
	}
}

// removeLocked takes w out of the waiting line, keeping the order of the
// remaining entries.
func (qm *QueueMiddleware) removeLocked(w *waiter) {
	for n := qm.waiting.Length(); n > 0; n-- {
		if x := qm.waiting.Remove(); x != w {
			qm.waiting.Add(x)
		}
	}
	qm.updateGaugesLocked()
}

func (qm *QueueMiddleware) release() {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	qm.active--
	qm.promoteLocked()
}

// Handler wraps next with admission control.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ok, qerr := qm.acquire(r.Context())
		if qm.metrics != nil {
			qm.metrics.RequestDuration.WithLabelValues("queue_wait").Observe(time.Since(start).Seconds())
		}
		if !ok {
			errors.WriteError(w, qerr)
			return
		}
		defer qm.release()

		next.ServeHTTP(w, r)
	})
}

// Shutdown stops admitting requests and waits until running and waiting
// requests have drained or ctx ends.
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	qm.mu.Lock()
	qm.closed = true
	qm.mu.Unlock()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		qm.mu.Lock()
		drained := qm.active == 0 && qm.waiting.Length() == 0
		qm.mu.Unlock()
		if drained {
			return nil
		}
		select {
		case <-ctx.Done():
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetQueueSize returns the number of waiting requests.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.waiting.Length()
}

// GetMaxSize returns the current maximum queue size.
func (qm *QueueMiddleware) GetMaxSize() int64 {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.maxSize
}

// GetProcessing returns the number of requests currently being processed.
func (qm *QueueMiddleware) GetProcessing() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.active
}
