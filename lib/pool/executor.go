package pool

import (
	"context"
	"sync"

	"syncnet/lib/ds/queue"
)

// Executor runs submitted tasks strictly one after another. The goroutine
// serving it is started on demand and exits as soon as the queue drains, so an
// idle executor costs nothing.
type Executor struct {
	id int

	mu      sync.Mutex
	tasks   *queue.NaiveQueue[func()]
	running bool
}

func NewExecutor(id int) *Executor {
	return &Executor{id: id, tasks: queue.NewNaive[func()](0)}
}

func (e *Executor) ID() int { return e.id }

// Execute enqueues task. It never blocks.
func (e *Executor) Execute(task func()) {
	e.mu.Lock()
	e.tasks.Enqueue(task)
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	go e.drain()
}

// Pending returns the number of queued tasks not yet started.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.tasks.Len())
}

func (e *Executor) drain() {
	for {
		e.mu.Lock()
		task, err := e.tasks.Dequeue()
		if err != nil {
			e.running = false
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		task()
	}
}

// ExecutorPool owns a fixed set of executors. Obtain blocks until one is
// free, which bounds how many requests can run callbacks at the same time.
type ExecutorPool struct {
	size int
	idle chan *Executor

	// recycler puts executors back without making the caller wait.
	recycler *Executor
}

func NewExecutorPool(max int) *ExecutorPool {
	p := &ExecutorPool{
		size:     max,
		idle:     make(chan *Executor, max),
		recycler: NewExecutor(-1),
	}
	for id := range max {
		p.idle <- NewExecutor(id)
	}
	return p
}

// Obtain takes an idle executor, waiting for one to be recycled if needed.
func (p *ExecutorPool) Obtain(ctx context.Context) (*Executor, error) {
	select {
	case e := <-p.idle:
		return e, nil
	default:
	}

	select {
	case e := <-p.idle:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Recycle hands e back asynchronously.
func (p *ExecutorPool) Recycle(e *Executor) {
	p.recycler.Execute(func() {
		select {
		case p.idle <- e:
		default:
			// More executors returned than the pool owns; drop the extra.
		}
	})
}

func (p *ExecutorPool) Size() int { return p.size }

// Idle returns the number of executors ready to be obtained.
func (p *ExecutorPool) Idle() int { return len(p.idle) }
