package worker

import (
	"context"
	"sync"
)

// Runner is a background loop that blocks until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context)
}

// Pool manages the lifecycle of the background runners that own the queue's
// clock: the drainer and the sweeper.
type Pool struct {
	runners []Runner
	wg      sync.WaitGroup
}

func NewPool(runners ...Runner) *Pool {
	return &Pool{runners: runners}
}

// Start launches all runners as goroutines.
// The provided ctx is forwarded to every runner; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, r := range p.runners {
		p.wg.Add(1)
		go func(r Runner) {
			defer p.wg.Done()
			r.Run(ctx)
		}(r)
	}
}

// Wait blocks until every runner has returned after ctx is cancelled.
// A drain in progress finishes recording the outcome of the message it is
// delivering before its runner returns.
func (p *Pool) Wait() {
	p.wg.Wait()
}
