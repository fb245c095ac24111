package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	mu        sync.RWMutex // guards sends against close
	isClosing atomic.Bool
	timeout   time.Duration
	log       *zap.Logger
}

// NewWorkerPool starts size workers. Each task runs with its own timeout
// because the request that submitted it may already be gone.
func NewWorkerPool(size, queueSize int, timeout time.Duration, log *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	wp := &WorkerPool{
		taskQueue: make(chan Task, queueSize),
		timeout:   timeout,
		log:       log,
	}

	// Start the workers
	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), wp.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			wp.log.Error("worker task panicked", zap.Any("panic", r))
		}
	}()

	if err := task(ctx); err != nil {
		wp.log.Warn("worker task failed", zap.Error(err))
	}
}

// Submit queues a task. It reports false when the task was dropped because
// the pool is shutting down or the queue is full.
func (wp *WorkerPool) Submit(t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.isClosing.Load() {
		wp.log.Warn("task submitted during shutdown, dropping")
		return false
	}
	select {
	case wp.taskQueue <- t:
		return true
	default:
		wp.log.Warn("task queue full, dropping task")
		return false
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.isClosing.Swap(true) {
		wp.mu.Unlock()
		return
	}
	close(wp.taskQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
}
