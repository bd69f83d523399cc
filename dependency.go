package scheduler

import "sort"

// EdgeKind distinguishes an end-to-start dependency ("successor starts
// after predecessor ends plus gap") from a start-to-start one
// ("successor starts after predecessor starts plus gap").
type EdgeKind uint8

const (
	EdgeEndToStart EdgeKind = iota
	EdgeStartToStart
)

// DependencyEdge is a single precedes/depends relationship recorded on
// the successor task. Gap and MaxGap are in slot units; MaxGap nil means
// unbounded. Kind picks which of the predecessor's own anchors the gap is
// measured from; TargetOnEnd picks which of the successor's own anchors
// the result constrains. The zero value (false) keeps today's default:
// the edge bounds the successor's start.
type DependencyEdge struct {
	SourceID    int64
	Kind        EdgeKind
	Gap         int64
	MaxGap      *int64
	TargetOnEnd bool
}

// DependencyGraph is the adjacency list of a project's dependency edges,
// keyed by the task that has the edges (the successor). Used to produce
// a deterministic topological order for the Fixed-Point Driver and to
// detect cycles before any placement is attempted.
type DependencyGraph struct {
	nodes map[int64]bool
	edges map[int64][]DependencyEdge
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[int64]bool),
		edges: make(map[int64][]DependencyEdge),
	}
}

func (g *DependencyGraph) AddNode(id int64) {
	g.nodes[id] = true
}

func (g *DependencyGraph) AddEdge(targetID int64, edge DependencyEdge) {
	g.nodes[targetID] = true
	g.nodes[edge.SourceID] = true
	g.edges[targetID] = append(g.edges[targetID], edge)
}

func (g *DependencyGraph) EdgesOf(targetID int64) []DependencyEdge {
	return g.edges[targetID]
}

// TopoOrder returns task IDs ordered so every predecessor precedes its
// successors, breaking ties by numeric ID for determinism. Detects cycles
// via the classic white/gray/black DFS coloring.
func (g *DependencyGraph) TopoOrder() ([]int64, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[int64]int, len(g.nodes))
	order := make([]int64, 0, len(g.nodes))

	ids := g.sortedNodeIDs()

	var visit func(id int64) error

	visit = func(id int64) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return errCycleDetected("DependencyGraph.TopoOrder", id)
		}

		color[id] = gray

		for _, edge := range g.edges[id] {
			if errVisit := visit(edge.SourceID); errVisit != nil {
				return errVisit
			}
		}

		color[id] = black
		order = append(order, id)

		return nil
	}

	for _, id := range ids {
		if errVisit := visit(id); errVisit != nil {
			return nil, errVisit
		}
	}

	return order, nil
}

// ReverseTopoOrder is TopoOrder reversed, used by ALAP placement passes
// that need to visit successors before their predecessors.
func (g *DependencyGraph) ReverseTopoOrder() ([]int64, error) {
	order, errOrder := g.TopoOrder()
	if errOrder != nil {
		return nil, errOrder
	}

	reversed := make([]int64, len(order))

	for i, id := range order {
		reversed[len(order)-1-i] = id
	}

	return reversed, nil
}

func (g *DependencyGraph) sortedNodeIDs() []int64 {
	ids := make([]int64, 0, len(g.nodes))

	for id := range g.nodes {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
