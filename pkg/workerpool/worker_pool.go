// Package workerpool provides a small fixed-size goroutine pool. It
// backs internal/stage.Parallel's partition dispatch, which sizes the
// pool to num_threads, one worker per partition.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Task is a unit of work submitted to a Pool. ID is carried through to
// the matching Result so a caller can correlate a result back to
// whatever produced the task (a partition index, typically).
type Task struct {
	ID string
	Fn func(ctx context.Context) error
}

// Result is what a Pool reports back for each submitted Task.
type Result struct {
	ID  string
	Err error
}

// Pool runs submitted tasks across a fixed number of worker goroutines,
// reporting one Result per Task on Results().
type Pool struct {
	tasks   chan Task
	results chan Result
	wg      sync.WaitGroup
	log     *logrus.Entry

	submitted int64
	completed int64
	failed    int64
}

// New constructs a Pool with the given number of workers (minimum 1) and
// starts them immediately.
func New(workers int, log *logrus.Entry) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}

	p := &Pool{
		tasks:   make(chan Task, workers),
		results: make(chan Result, workers),
		log:     log,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		err := task.Fn(context.Background())
		if err != nil {
			atomic.AddInt64(&p.failed, 1)
			p.log.WithFields(logrus.Fields{"worker": id, "task": task.ID}).WithError(err).Error("task failed")
		} else {
			atomic.AddInt64(&p.completed, 1)
		}
		p.results <- Result{ID: task.ID, Err: err}
	}
}

// Submit enqueues a task. It blocks while the queue is full. Each worker
// holds a finished task's result until there is room on Results(), so a
// caller that submits more than three times the worker count must read
// Results() concurrently.
func (p *Pool) Submit(t Task) {
	atomic.AddInt64(&p.submitted, 1)
	p.tasks <- t
}

// Results returns the channel tasks report their outcome on. A caller
// that submitted N tasks should read exactly N results.
func (p *Pool) Results() <-chan Result { return p.results }

// Stats is a snapshot of a Pool's task counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
}

// Stats returns the Pool's current task counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: atomic.LoadInt64(&p.submitted),
		Completed: atomic.LoadInt64(&p.completed),
		Failed:    atomic.LoadInt64(&p.failed),
	}
}

// Close stops accepting tasks and waits for every in-flight task to
// finish, then closes the results channel. Safe to call once, after
// every submitted task's result has been consumed.
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
	close(p.results)
}
