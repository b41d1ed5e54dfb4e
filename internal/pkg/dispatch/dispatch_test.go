package dispatch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestSubmitRunsJobs(t *testing.T) {
	d := New(8, 2, quietLogger())

	var ran int32
	for i := 0; i < 5; i++ {
		if !d.Submit("count", func() { atomic.AddInt32(&ran, 1) }) {
			t.Fatal("submit rejected with queue capacity available")
		}
	}
	d.Close()

	if got := atomic.LoadInt32(&ran); got != 5 {
		t.Fatalf("ran = %d, want 5", got)
	}
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	d := New(1, 1, quietLogger())
	defer d.Close()

	block := make(chan struct{})
	d.Submit("blocker", func() { <-block })

	// Give the single worker time to pick up the blocker, then fill the
	// one-slot queue.
	time.Sleep(20 * time.Millisecond)
	d.Submit("queued", func() {})

	if d.Submit("overflow", func() {}) {
		t.Fatal("submit should drop when the queue is full")
	}
	close(block)
}

func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	d := New(8, 1, quietLogger())

	d.Submit("boom", func() { panic("boom") })

	var ran int32
	d.Submit("after", func() { atomic.AddInt32(&ran, 1) })
	d.Close()

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("worker died after a panicking job")
	}
}
