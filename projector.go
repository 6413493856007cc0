package fiberdb

import (
	"sync"
	"time"

	"github.com/bobboyms/fiberdb/internal/entity"
)

// projectorQueueSize bounds how many pending batch-mode projections can
// accumulate before SaveEntity starts blocking on enqueue — the same
// backpressure trade-off the teacher's writer makes by bounding its bufio
// buffer rather than allowing unbounded growth.
const projectorQueueSize = 4096

// projectorWorkers is the number of goroutines draining the batch queue
// concurrently.
const projectorWorkers = 4

// scheduledFlushInterval is how often pending scheduled-mode entities are
// projected as one batch (spec §4.8 "scheduled sync mode").
const scheduledFlushInterval = 500 * time.Millisecond

// projector is the background projection pipeline for non-immediate entity
// types (spec §4.8 "background projection queue"). Batch-mode writes are
// pushed onto a bounded channel and drained by a fixed worker pool as soon
// as a worker is free; scheduled-mode writes accumulate in a pending set
// and are flushed together on a fixed interval. SyncImmediate types never
// touch either path — afterWrite calls cols.Project inline for those.
type projector struct {
	engine *Engine

	jobs chan *entity.Entity

	pendingMu sync.Mutex
	pending   map[string]*entity.Entity // composite key -> latest version

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func newProjector(e *Engine) *projector {
	p := &projector{
		engine:  e,
		jobs:    make(chan *entity.Entity, projectorQueueSize),
		pending: make(map[string]*entity.Entity),
		ticker:  time.NewTicker(scheduledFlushInterval),
		done:    make(chan struct{}),
	}
	for i := 0; i < projectorWorkers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.wg.Add(1)
	go p.runScheduledFlush()
	return p
}

// enqueue routes ent to the batch queue or the scheduled pending set
// according to its type's configured sync mode.
func (p *projector) enqueue(ent *entity.Entity) {
	st := p.engine.columnarStateFor(ent.Type)
	if st == nil {
		return
	}

	if st.config.SyncMode == SyncScheduled {
		p.pendingMu.Lock()
		p.pending[ent.CompositeKey()] = ent
		p.pendingMu.Unlock()
		return
	}

	select {
	case p.jobs <- ent:
	case <-p.done:
	}
}

func (p *projector) work() {
	defer p.wg.Done()
	for {
		select {
		case ent, ok := <-p.jobs:
			if !ok {
				return
			}
			p.project(ent)
		case <-p.done:
			return
		}
	}
}

func (p *projector) runScheduledFlush() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ticker.C:
			p.flushScheduled()
		case <-p.done:
			return
		}
	}
}

func (p *projector) flushScheduled() {
	p.pendingMu.Lock()
	batch := p.pending
	p.pending = make(map[string]*entity.Entity)
	p.pendingMu.Unlock()

	for _, ent := range batch {
		p.project(ent)
	}
}

func (p *projector) project(ent *entity.Entity) {
	st := p.engine.columnarStateFor(ent.Type)
	if st == nil || st.state != StateActive {
		return
	}
	p.engine.projectOne(ent, st)
}

func (p *projector) stop() {
	p.ticker.Stop()
	p.flushScheduled()
	for drained := false; !drained; {
		select {
		case ent := <-p.jobs:
			p.project(ent)
		default:
			drained = true
		}
	}
	close(p.done)
	p.wg.Wait()
}
