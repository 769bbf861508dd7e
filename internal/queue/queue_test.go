package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsmanager/campaign-gateway/internal/provider"
)

// fakeSender records send order and fails destinations listed in failures
// for the first N attempts.
type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	failures map[string]int
}

func newFakeSender() *fakeSender {
	return &fakeSender{failures: make(map[string]int)}
}

func (f *fakeSender) failTimes(to string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[to] = n
}

func (f *fakeSender) Send(_ context.Context, to string, _ string, _ []string) provider.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	if f.failures[to] > 0 {
		f.failures[to]--
		return provider.SendResult{Success: false, Error: "simulated failure"}
	}
	return provider.SendResult{Success: true, SID: "SM_" + to, To: to}
}

func (f *fakeSender) order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func drain(t *testing.T, q *Queue, n int) []Result {
	t.Helper()
	out := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		select {
		case r := <-q.Results():
			out = append(out, r)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for result %d of %d", i+1, n)
		}
	}
	return out
}

func TestQueue_ProcessInOrder(t *testing.T) {
	sender := newFakeSender()
	q := New(sender, 3, 16)

	q.Add(
		Item{MessageID: 1, To: "+50211111111", Body: "a", Primary: true, FileCount: 1},
		Item{MessageID: 2, To: "+50222222222", Body: "b", Primary: true, FileCount: 1},
		Item{MessageID: 3, To: "+50233333333", Body: "c", Primary: true, FileCount: 1},
	)
	require.Equal(t, 3, q.Size())

	go q.Process(context.Background())
	results := drain(t, q, 3)

	assert.Equal(t, []string{"+50211111111", "+50222222222", "+50233333333"}, sender.order())
	for _, r := range results {
		assert.True(t, r.Send.Success)
		assert.False(t, r.Requeued)
	}
	assert.Equal(t, 0, q.Size())
}

func TestQueue_FailedItemRequeuedAtBack(t *testing.T) {
	sender := newFakeSender()
	sender.failTimes("+50222222222", 1)
	q := New(sender, 3, 16)

	q.Add(
		Item{MessageID: 1, To: "+50211111111", Primary: true, FileCount: 1},
		Item{MessageID: 2, To: "+50222222222", Primary: true, FileCount: 1},
		Item{MessageID: 3, To: "+50233333333", Primary: true, FileCount: 1},
	)

	go q.Process(context.Background())
	results := drain(t, q, 4)

	// item 2 fails once, goes to the tail, and is retried exactly once
	// after items 1 and 3; 1 and 3 are attempted exactly once each
	assert.Equal(t, []string{"+50211111111", "+50222222222", "+50233333333", "+50222222222"}, sender.order())

	assert.True(t, results[1].Requeued)
	assert.False(t, results[1].Send.Success)
	assert.Equal(t, int64(2), results[3].Item.MessageID)
	assert.True(t, results[3].Send.Success)
	assert.False(t, results[3].Requeued)
}

func TestQueue_AttemptCap(t *testing.T) {
	sender := newFakeSender()
	sender.failTimes("+50211111111", 100)
	q := New(sender, 3, 16)

	q.Add(Item{MessageID: 1, To: "+50211111111", Primary: true, FileCount: 1})

	go q.Process(context.Background())
	results := drain(t, q, 3)

	assert.Len(t, sender.order(), 3)
	assert.True(t, results[0].Requeued)
	assert.True(t, results[1].Requeued)
	assert.False(t, results[2].Requeued)
	assert.False(t, results[2].Send.Success)
	assert.Equal(t, 3, results[2].Item.Attempts)
	assert.Equal(t, 0, q.Size())
}

func TestQueue_SingleFlightDrain(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{}, 2)
	sender := &gateSender{block: block, entered: entered}
	q := New(sender, 3, 16)

	q.Add(Item{MessageID: 1, To: "+50211111111", Primary: true, FileCount: 1})

	go q.Process(context.Background())
	<-entered

	// second drain must bail out instead of racing the first
	done := make(chan struct{})
	go func() {
		q.Process(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("overlapping Process call did not return immediately")
	}

	close(block)
	drain(t, q, 1)
	assert.Equal(t, 1, sender.calls)
}

type gateSender struct {
	block   chan struct{}
	entered chan struct{}
	calls   int
}

func (g *gateSender) Send(context.Context, string, string, []string) provider.SendResult {
	g.calls++
	g.entered <- struct{}{}
	<-g.block
	return provider.SendResult{Success: true, SID: "SM1"}
}

func TestQueue_StopClosesResults(t *testing.T) {
	sender := newFakeSender()
	q := New(sender, 3, 16)

	q.Add(Item{MessageID: 1, To: "+50211111111"})
	q.Stop()

	assert.Equal(t, 0, q.Size())

	// items added after Stop are dropped
	q.Add(Item{MessageID: 2, To: "+50222222222"})
	assert.Equal(t, 0, q.Size())

	// a drain after Stop is a no-op and the channel is closed
	q.Process(context.Background())
	_, open := <-q.Results()
	assert.False(t, open)
	assert.Empty(t, sender.order())
}

func TestQueue_ContextCancelStopsDrain(t *testing.T) {
	sender := newFakeSender()
	q := New(sender, 3, 1)

	ctx, cancel := context.WithCancel(context.Background())
	q.Add(
		Item{MessageID: 1, To: "+50211111111"},
		Item{MessageID: 2, To: "+50222222222"},
	)

	done := make(chan struct{})
	go func() {
		q.Process(ctx)
		close(done)
	}()

	// nobody reads results, so the drain blocks on the full buffer after
	// the second send; cancellation must unwind it
	require.Eventually(t, func() bool {
		return len(sender.order()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("drain did not stop on context cancellation")
	}
}
