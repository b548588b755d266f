// Package async runs named, independent tasks on a bounded set of workers.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (any, error)
}

type Result struct {
	Name string
	Data any
	Err  error
}

// PanicError is the Result.Err of a task that panicked.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

func run(ctx context.Context, task Task) (result Result) {
	result.Name = task.Name
	defer func() {
		if r := recover(); r != nil {
			result.Data = nil
			result.Err = &PanicError{Task: task.Name, Value: r, Stack: debug.Stack()}
		}
	}()
	result.Data, result.Err = task.Execute(ctx)
	return result
}

// Execute runs every task and returns results keyed by task name. A task that
// did not start before ctx ended gets ctx.Err() as its result. A panicking
// task yields a *PanicError and does not affect the others.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	queue := make(chan Task)
	results := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < min(p.workerCount, len(tasks)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				results <- run(ctx, task)
			}
		}()
	}

	pending := tasks
	for len(pending) > 0 {
		select {
		case queue <- pending[0]:
			pending = pending[1:]
		case <-ctx.Done():
			for _, task := range pending {
				results <- Result{Name: task.Name, Err: ctx.Err()}
			}
			pending = nil
		}
	}
	close(queue)
	wg.Wait()
	close(results)

	collected := make(map[string]Result, len(tasks))
	for result := range results {
		collected[result.Name] = result
	}
	return collected
}
