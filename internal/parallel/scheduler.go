package parallel

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Shutdown when the scheduler was already shut down.
var ErrClosed = errors.New("parallel: scheduler already shut down")

// shutdownCount is stored into the outstanding counter on shutdown. It is far
// enough below zero that stray decrements from in-flight bands cannot bring
// it back to a non-negative value.
const shutdownCount = math.MinInt64 / 2

// Scheduler is the composite job queue together with its single background
// worker.
//
// Ready nodes are delivered in FIFO order. The worker caches the node it is
// draining so it (and a stealing producer) can claim further bands without
// taking the queue lock. Ordering between jobs is enforced by the Graph, not
// by which goroutine runs a band, so the producer may execute jobs itself
// while it waits for a frame to finish.
//
// Thread safety: Prepare, Queue and Wait are called from one producer
// goroutine. The worker runs concurrently. Only queue insertion and removal
// happen under the mutex; every counter is atomic.
type Scheduler struct {
	graph *Graph

	mu    sync.Mutex
	cond  *sync.Cond
	queue fifo

	// current is the node being drained, or NoNode.
	current atomic.Int32

	// count is the number of outstanding bands, plus one while a frame is
	// being built. A negative value means shutdown.
	count atomic.Int64

	// held and pending are producer-only; see Hold.
	held    bool
	pending []NodeID

	closed atomic.Bool
	done   chan struct{}
}

// NewScheduler creates a scheduler over graph and starts its worker
// goroutine.
func NewScheduler(graph *Graph) *Scheduler {
	s := &Scheduler{
		graph: graph,
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	s.current.Store(int32(NoNode))

	go s.worker()

	return s
}

// worker is the main loop of the background composite goroutine.
func (s *Scheduler) worker() {
	defer close(s.done)
	s.processJobs(true)
}

// Prepare holds a bias on the outstanding counter so it cannot reach zero
// while the dependency graph is still being built. Wait releases it.
func (s *Scheduler) Prepare() {
	s.count.Add(1)
}

// Queue installs job with the given band count on node id. The bands are
// added to the outstanding counter before the node can become ready. If the
// node has no unresolved parents it is pushed to the queue immediately;
// otherwise it is pushed by whichever goroutine retires its last parent.
func (s *Scheduler) Queue(id NodeID, job Job, bands int) {
	if bands < 1 {
		bands = 1
	}
	s.count.Add(int64(bands))
	if !s.graph.Node(id).SetJob(job, bands) {
		return
	}
	if s.held {
		s.pending = append(s.pending, id)
		return
	}
	s.mu.Lock()
	s.send(id)
	s.mu.Unlock()
}

// Hold keeps nodes made ready by Queue out of the queue until Release.
// While held, no node queued since Hold can be draining, so children may
// still be added to it with Graph.AddChild.
func (s *Scheduler) Hold() {
	s.held = true
}

// Release publishes every node collected since Hold, in queueing order.
func (s *Scheduler) Release() {
	s.held = false
	if len(s.pending) == 0 {
		return
	}
	s.mu.Lock()
	for _, id := range s.pending {
		s.send(id)
	}
	s.mu.Unlock()
	s.pending = s.pending[:0]
}

// send pushes a ready node. Must be called with s.mu held.
func (s *Scheduler) send(id NodeID) {
	if s.queue.empty() {
		s.cond.Broadcast()
	}
	s.queue.push(id)
}

// Wait releases the bias taken by Prepare and returns once every
// outstanding band has been processed. While work remains the calling
// goroutine executes ready jobs itself and only blocks when nothing is left
// to steal.
func (s *Scheduler) Wait() {
	if s.count.Add(-1) <= 0 {
		return
	}
	for {
		if s.processJobs(false) {
			return
		}
		s.mu.Lock()
		for s.queue.empty() && s.count.Load() > 0 {
			s.cond.Wait()
		}
		finished := s.count.Load() <= 0
		s.mu.Unlock()
		if finished {
			return
		}
	}
}

// processJobs drains ready jobs. With wait set it blocks whenever the queue
// is empty and only returns on shutdown; without it, it returns as soon as
// nothing is left to take. It reports whether shutdown was observed.
func (s *Scheduler) processJobs(wait bool) bool {
	var ready []NodeID
	for {
		if id := NodeID(s.current.Load()); id != NoNode {
			band, last, ok := s.graph.Node(id).TakeBand()
			if ok {
				if last {
					s.current.CompareAndSwap(int32(id), int32(NoNode))
				}
				ready = s.runBand(id, band, ready[:0])
				continue
			}
			s.current.CompareAndSwap(int32(id), int32(NoNode))
		}

		s.mu.Lock()
		if s.current.Load() != int32(NoNode) {
			// Another goroutine installed a node since we checked.
			s.mu.Unlock()
			continue
		}
		count := s.count.Load()
		if count < 0 {
			s.mu.Unlock()
			return true
		}
		if id, ok := s.queue.pop(); ok {
			s.current.Store(int32(id))
			s.mu.Unlock()
			continue
		}
		if count == 0 {
			s.cond.Broadcast()
		}
		if !wait {
			s.mu.Unlock()
			return false
		}
		s.cond.Wait()
		s.mu.Unlock()
	}
}

// runBand processes one band of node id and performs the completion
// bookkeeping. ready is scratch space for newly unblocked children.
func (s *Scheduler) runBand(id NodeID, band int, ready []NodeID) []NodeID {
	n := s.graph.Node(id)
	if n.job != nil {
		n.job.ProcessBand(band, n.Bands())
	}

	ready = s.graph.finishBand(id, ready)
	if len(ready) > 0 {
		s.mu.Lock()
		for _, c := range ready {
			s.send(c)
		}
		s.mu.Unlock()
	}

	if s.count.Add(-1) == 0 {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}
	return ready
}

// Shutdown stops the worker goroutine and waits for it to exit. Work still
// queued is abandoned. Shutdown must be called exactly once; later calls
// return ErrClosed.
func (s *Scheduler) Shutdown() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	s.count.Store(shutdownCount)
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
	return nil
}

// Outstanding returns the current value of the outstanding band counter.
func (s *Scheduler) Outstanding() int64 {
	return s.count.Load()
}

// QueueLen returns the number of ready nodes waiting in the queue.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// fifo is a slice-backed queue of node handles.
type fifo struct {
	items []NodeID
	head  int
}

func (q *fifo) empty() bool { return q.head == len(q.items) }

func (q *fifo) len() int { return len(q.items) - q.head }

func (q *fifo) push(id NodeID) {
	q.items = append(q.items, id)
}

func (q *fifo) pop() (NodeID, bool) {
	if q.empty() {
		return NoNode, false
	}
	id := q.items[q.head]
	q.head++
	if q.empty() {
		q.items = q.items[:0]
		q.head = 0
	}
	return id, true
}
