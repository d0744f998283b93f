package parallel

import (
	"sync/atomic"
)

// NodeID is a stable handle to a Node in a Graph.
type NodeID int32

// NoNode is the invalid NodeID. It is never returned by Graph.Alloc.
const NoNode NodeID = -1

// Job is a unit of composite work that can be split into horizontal bands.
//
// ProcessBand is called exactly once for every band index in [0, bands).
// Different bands of the same job may run concurrently on different
// goroutines, so implementations must only touch state derived from the
// band index.
type Job interface {
	ProcessBand(band, bands int)
}

// Node is the per-tile, per-frame dependency record shared between the
// frame producer and the composite worker.
//
// A node moves through four states within a frame:
//
//	Blocked  parents > 0
//	Ready    parents == 0, pushed to the queue
//	Draining bands being claimed with TakeBand
//	Retired  remaining == 0, job dropped, children notified
//
// parents starts at a sentinel of 1 so that a node can never become ready
// before SetJob has installed its job.
type Node struct {
	job   Job
	bands int32

	remaining atomic.Int32
	available atomic.Int32
	parents   atomic.Int32

	// children may only be appended to while this node is still unresolved
	// from the producer's point of view. It is immutable once draining.
	children []NodeID
}

func newNode() *Node {
	n := &Node{}
	n.parents.Store(1)
	return n
}

// Reset clears the node for a new frame and re-establishes the sentinel
// parent.
func (n *Node) Reset() {
	n.job = nil
	n.bands = 0
	n.available.Store(0)
	n.remaining.Store(0)
	n.parents.Store(1)
	n.children = n.children[:0]
}

// SetJob installs job split into bands and releases the sentinel parent.
// It reports whether the node has no unresolved parents left and must be
// queued by the caller.
func (n *Node) SetJob(job Job, bands int) bool {
	if bands < 1 {
		bands = 1
	}
	n.job = job
	n.bands = int32(bands) //nolint:gosec // bands is bounded by MaxBands
	n.remaining.Store(n.bands)
	if n.parents.Add(-1) != 0 {
		return false
	}
	n.available.Store(n.bands)
	return true
}

// TakeBand claims the next unclaimed band. Bands are handed out from the
// highest index down. last reports whether the returned band was the final
// one available, after which the caller can stop re-checking this node.
// ok is false when no band was left to claim.
func (n *Node) TakeBand() (band int, last, ok bool) {
	for {
		avail := n.available.Load()
		if avail <= 0 {
			return 0, true, false
		}
		if n.available.CompareAndSwap(avail, avail-1) {
			return int(avail - 1), avail == 1, true
		}
	}
}

// Bands returns the band count installed by SetJob.
func (n *Node) Bands() int {
	return int(n.bands)
}

// Parents returns the number of unresolved parents, including the sentinel
// while no job is installed.
func (n *Node) Parents() int {
	return int(n.parents.Load())
}

// Children returns the dependents registered on this node.
func (n *Node) Children() []NodeID {
	return n.children
}

// Graph is an arena of Nodes addressed by NodeID.
//
// Alloc and Free must only be called between frames. The node table is
// published through an atomic pointer, so a goroutine still holding a stale
// NodeID from the previous frame never observes a torn slice while the
// table grows.
type Graph struct {
	nodes atomic.Pointer[[]*Node]
	free  []NodeID
}

// NewGraph creates an empty node arena.
func NewGraph() *Graph {
	g := &Graph{}
	empty := make([]*Node, 0)
	g.nodes.Store(&empty)
	return g
}

// Alloc returns a fresh node handle, reusing freed slots first.
func (g *Graph) Alloc() NodeID {
	if n := len(g.free); n > 0 {
		id := g.free[n-1]
		g.free = g.free[:n-1]
		g.Node(id).Reset()
		return id
	}

	old := *g.nodes.Load()
	grown := make([]*Node, len(old), len(old)+1)
	copy(grown, old)
	grown = append(grown, newNode())
	g.nodes.Store(&grown)
	return NodeID(len(grown) - 1) //nolint:gosec // node count fits in int32
}

// Free returns id to the arena for reuse by a later Alloc.
func (g *Graph) Free(id NodeID) {
	if id == NoNode {
		return
	}
	g.Node(id).Reset()
	g.free = append(g.free, id)
}

// Node returns the node for id.
func (g *Graph) Node(id NodeID) *Node {
	return (*g.nodes.Load())[id]
}

// Len returns the number of allocated slots, including freed ones.
func (g *Graph) Len() int {
	return len(*g.nodes.Load())
}

// AddChild registers child as a dependent of parent and counts parent as
// one of child's unresolved parents. The caller must still be treating
// parent as unresolved, i.e. parent's job has not been queued yet.
func (g *Graph) AddChild(parent, child NodeID) {
	c := g.Node(child)
	c.parents.Add(1)
	p := g.Node(parent)
	p.children = append(p.children, child)
}

// finishBand records completion of one band of id. The goroutine that
// completes the final band retires the node and collects the children whose
// last parent this was; those children are returned ready for queueing.
func (g *Graph) finishBand(id NodeID, ready []NodeID) []NodeID {
	n := g.Node(id)
	if n.remaining.Add(-1) != 0 {
		return ready
	}
	n.job = nil
	for _, cid := range n.children {
		c := g.Node(cid)
		if c.parents.Add(-1) == 0 {
			c.available.Store(c.bands)
			ready = append(ready, cid)
		}
	}
	return ready
}
