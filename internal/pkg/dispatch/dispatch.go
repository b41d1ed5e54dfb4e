// internal/pkg/dispatch/dispatch.go
package dispatch

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Dispatcher runs fire-and-forget jobs on a small worker pool behind a
// bounded queue. When the queue is full the job is dropped with a warning
// rather than blocking the request that submitted it.
type Dispatcher struct {
	jobs   chan job
	logger *logrus.Logger
	wg     sync.WaitGroup
	once   sync.Once
}

type job struct {
	name string
	fn   func()
}

// New creates a dispatcher with the given queue depth and worker count
func New(queueSize, workers int, logger *logrus.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 2
	}
	d := &Dispatcher{
		jobs:   make(chan job, queueSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit queues a named job. Returns false if the queue was full and the
// job was dropped.
func (d *Dispatcher) Submit(name string, fn func()) bool {
	select {
	case d.jobs <- job{name: name, fn: fn}:
		return true
	default:
		d.logger.WithField("job", name).Warn("Dispatch queue full, dropping job")
		return false
	}
}

// Close stops accepting jobs and waits for in-flight ones to finish
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"job":   j.name,
				"panic": r,
			}).Error("Dispatched job panicked")
		}
	}()
	j.fn()
}
