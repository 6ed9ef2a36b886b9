// Package worker dispatches inbound events as independent units of work.
// The ledger store's transaction discipline is what keeps concurrent units
// consistent; the pool only bounds how many run at once.
package worker

import (
	"context"
	"log"
	"sync"
)

// Task is one unit of work against the shared ledger.
type Task func(ctx context.Context)

type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewPool(bufferSize int) *Pool {
	return &Pool{
		tasks: make(chan Task, bufferSize),
	}
}

// Start launches workerCount workers. ctx is handed to every task; when it
// is cancelled, in-flight tasks decide how to wind down.
func (p *Pool) Start(ctx context.Context, workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for task := range p.tasks {
		task(ctx)
	}
}

// Submit queues a task, returning false when the pool is saturated or
// already shut down. Safe to call concurrently with Shutdown.
func (p *Pool) Submit(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		log.Println("[WORKER] Pool shut down, task rejected")
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		log.Println("[WORKER] Pool saturated, task rejected")
		return false
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}
