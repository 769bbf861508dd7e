package queue

import (
	"context"
	"sync"
	"time"

	"github.com/whatsmanager/campaign-gateway/internal/provider"
	"github.com/whatsmanager/campaign-gateway/pkg/logger"
	"github.com/whatsmanager/campaign-gateway/pkg/prom"
)

// Sender is the provider boundary the queue drains into. Satisfied by
// *provider.Client.
type Sender interface {
	Send(ctx context.Context, to string, body string, mediaURLs []string) provider.SendResult
}

// Item is one outbound send. A database message that carries several
// attachments is split into FileCount items sharing the same MessageID;
// only the Primary item's outcome is persisted against the row.
type Item struct {
	MessageID  int64
	CampaignID int64
	To         string
	Body       string
	MediaURLs  []string
	Primary    bool
	FileIndex  int
	FileCount  int
	Attempts   int
}

// Result pairs an item with the outcome of one send attempt. Requeued is
// true when the item went back to the tail for another try, so the outcome
// must not be persisted as final.
type Result struct {
	Item     Item
	Send     provider.SendResult
	Duration time.Duration
	Requeued bool
}

// Queue is an in-process FIFO of pending sends. Add and Process may be
// called from different goroutines; Process drains items one at a time so
// the provider rate limit and send ordering hold.
type Queue struct {
	mu          sync.Mutex
	items       []Item
	stopped     bool
	processing  bool
	maxAttempts int

	sender  Sender
	results chan Result
}

func New(sender Sender, maxAttempts int, resultBuffer int) *Queue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if resultBuffer < 1 {
		resultBuffer = 64
	}
	return &Queue{
		sender:      sender,
		maxAttempts: maxAttempts,
		results:     make(chan Result, resultBuffer),
	}
}

// Add appends items to the tail. Items added after Stop are dropped.
func (q *Queue) Add(items ...Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		logger.Warn("queue stopped, dropping items", "count", len(items))
		return
	}
	q.items = append(q.items, items...)
	prom.QueueDepth(float64(len(q.items)))
}

// Size reports the number of items waiting. Items being sent right now are
// not counted.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Results delivers one Result per send attempt. The channel is bounded; a
// consumer must drain it or Process will block once the buffer fills. It is
// closed by Stop after the in-flight drain finishes.
func (q *Queue) Results() <-chan Result {
	return q.results
}

// Process drains the queue until it is empty or ctx is done. Only one drain
// runs at a time; a call that finds another in flight returns immediately
// so overlapping dispatch ticks cannot reorder sends.
func (q *Queue) Process(ctx context.Context) {
	q.mu.Lock()
	if q.processing || q.stopped {
		q.mu.Unlock()
		return
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		stopped := q.stopped
		q.mu.Unlock()
		if stopped {
			close(q.results)
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		item, ok := q.pop()
		if !ok {
			return
		}

		started := time.Now()
		res := q.sender.Send(ctx, item.To, item.Body, item.MediaURLs)
		elapsed := time.Since(started)

		requeued := false
		if !res.Success {
			item.Attempts++
			if item.Attempts < q.maxAttempts {
				requeued = q.requeue(item)
			}
			if !requeued {
				logger.Warn("item exhausted send attempts",
					"message_id", item.MessageID, "attempts", item.Attempts, "error", res.Error)
			}
		}

		select {
		case q.results <- Result{Item: item, Send: res, Duration: elapsed, Requeued: requeued}:
		case <-ctx.Done():
			return
		}
	}
}

// Stop marks the queue closed. If no drain is in flight the results channel
// closes immediately, otherwise the running Process closes it on exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.items = nil
	prom.QueueDepth(0.0)
	inFlight := q.processing
	q.mu.Unlock()

	if !inFlight {
		close(q.results)
	}
}

func (q *Queue) pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped || len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	prom.QueueDepth(float64(len(q.items)))
	return item, true
}

func (q *Queue) requeue(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	q.items = append(q.items, item)
	prom.QueueDepth(float64(len(q.items)))
	return true
}
