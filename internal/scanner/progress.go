package scanner

import (
	"sync"
	"sync/atomic"
	"time"
)

// progressTracker batches progress callbacks: emitted every total/100
// items or at least every 50ms, with a guaranteed final (total, total)
// tick.
type progressTracker struct {
	total   int
	done    int64
	step    int64
	cb      ProgressFunc
	mu      sync.Mutex
	lastAt  time.Time
}

func newProgressTracker(total int, cb ProgressFunc) *progressTracker {
	step := int64(total / 100)
	if step < 1 {
		step = 1
	}
	return &progressTracker{total: total, step: step, cb: cb, lastAt: time.Now()}
}

func (p *progressTracker) tick() {
	if p.cb == nil {
		return
	}
	done := atomic.AddInt64(&p.done, 1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if done%p.step == 0 || time.Since(p.lastAt) >= 50*time.Millisecond {
		p.lastAt = time.Now()
		p.cb(int(done), p.total)
	}
}

func (p *progressTracker) finish() {
	if p.cb == nil {
		return
	}
	p.cb(p.total, p.total)
}
