package profile

import "sync"

// serialQueue runs posted functions one at a time on a single goroutine.
// Everything the aggregator shows is mutated only from here.
type serialQueue struct {
	tasks   chan func()
	done    chan struct{}
	closeMu sync.Once
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{
		tasks: make(chan func(), 16),
		done:  make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *serialQueue) loop() {
	defer close(q.done)
	for task := range q.tasks {
		task()
	}
}

// post schedules fn without waiting for it.
func (q *serialQueue) post(fn func()) {
	q.tasks <- fn
}

// run schedules fn and blocks until it has executed.
func (q *serialQueue) run(fn func()) {
	finished := make(chan struct{})
	q.tasks <- func() {
		defer close(finished)
		fn()
	}
	<-finished
}

// close drains pending tasks and stops the loop.
func (q *serialQueue) close() {
	q.closeMu.Do(func() {
		close(q.tasks)
	})
	<-q.done
}
