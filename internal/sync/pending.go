package syncer

import (
	"context"
	"sync"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// downloadResult is what a spawned download+verify task reports back:
// the hash it was asked to fetch, and nil or the failure it hit.
type downloadResult struct {
	hash types.Hash
	err  error
}

// pendingSet is the Syncer's completion-queue: a set of in-flight
// download+verify tasks that yields finished ones in arrival order,
// supporting both a non-blocking and a blocking pop. It stands in for
// the "futures unordered" task collection this kind of loop is usually
// built on.
type pendingSet struct {
	mu      sync.Mutex
	cancels map[types.Hash]context.CancelFunc
	results chan downloadResult
	count   int
}

func newPendingSet(buf int) *pendingSet {
	return &pendingSet{
		cancels: make(map[types.Hash]context.CancelFunc),
		results: make(chan downloadResult, buf),
	}
}

// spawn starts fn as an independent task derived from ctx. fn's result is
// delivered to the next tryNext/next call, unless the task's context is
// canceled first (via reset), in which case the result is dropped.
func (p *pendingSet) spawn(ctx context.Context, hash types.Hash, fn func(context.Context) error) {
	taskCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.cancels[hash] = cancel
	ch := p.results
	p.count++
	p.mu.Unlock()

	go func() {
		err := fn(taskCtx)

		p.mu.Lock()
		delete(p.cancels, hash)
		p.mu.Unlock()

		select {
		case ch <- downloadResult{hash: hash, err: err}:
		case <-taskCtx.Done():
		}
	}()
}

// tryNext pops a completed result without blocking.
func (p *pendingSet) tryNext() (downloadResult, bool) {
	p.mu.Lock()
	ch := p.results
	p.mu.Unlock()

	select {
	case res := <-ch:
		p.mu.Lock()
		p.count--
		p.mu.Unlock()
		return res, true
	default:
		return downloadResult{}, false
	}
}

// next blocks for the next completed result, or returns false if ctx is
// done first.
func (p *pendingSet) next(ctx context.Context) (downloadResult, bool) {
	p.mu.Lock()
	ch := p.results
	p.mu.Unlock()

	select {
	case res := <-ch:
		p.mu.Lock()
		p.count--
		p.mu.Unlock()
		return res, true
	case <-ctx.Done():
		return downloadResult{}, false
	}
}

// len reports the number of tasks spawned but not yet popped.
func (p *pendingSet) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// reset abandons every in-flight task: their contexts are canceled so a
// task that later finishes has somewhere to go other than blocking
// forever on a send nobody will read, and the channel is replaced so
// nothing already queued survives into the next generation. Used on a
// full sync restart, which by design drops all in-flight work.
func (p *pendingSet) reset() {
	p.mu.Lock()
	for _, cancel := range p.cancels {
		cancel()
	}
	p.cancels = make(map[types.Hash]context.CancelFunc)
	p.results = make(chan downloadResult, cap(p.results))
	p.count = 0
	p.mu.Unlock()
}
