package session

import (
	"sync"
	"time"

	"github.com/leapstack-labs/clinsight/pkg/core"
)

// persister debounces session-snapshot writes: a burst of mutations
// collapses into one save after the quiet period. Last write wins;
// there is no locking against other browser sessions of the same user.
type persister struct {
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	quiet    time.Duration
	snapshot func() *core.PersistedState
	save     func(*core.PersistedState)
	inflight sync.WaitGroup
}

func newPersister(quiet time.Duration, snapshot func() *core.PersistedState, save func(*core.PersistedState)) *persister {
	return &persister{quiet: quiet, snapshot: snapshot, save: save}
}

// MarkDirty (re)arms the debounce timer.
func (p *persister) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.quiet, p.flush)
}

func (p *persister) flush() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.inflight.Add(1)
	p.mu.Unlock()
	defer p.inflight.Done()

	st := p.snapshot()
	if st == nil {
		return
	}
	p.save(st)
}

// Stop disarms the timer, waits out an in-flight save, and writes one
// final snapshot.
func (p *persister) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	p.inflight.Wait()

	if st := p.snapshot(); st != nil {
		p.save(st)
	}

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}
