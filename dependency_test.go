package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDependencyGraphTopoOrder(t *testing.T) {
	t.Run(
		"1. linear chain orders predecessors before successors",
		func(t *testing.T) {
			g := NewDependencyGraph()
			g.AddNode(1)
			g.AddEdge(2, DependencyEdge{SourceID: 1})
			g.AddEdge(3, DependencyEdge{SourceID: 2})

			order, errOrder := g.TopoOrder()
			require.NoError(t, errOrder)
			require.Equal(t, []int64{1, 2, 3}, order)
		},
	)

	t.Run(
		"2. a cycle is detected",
		func(t *testing.T) {
			g := NewDependencyGraph()
			g.AddEdge(1, DependencyEdge{SourceID: 2})
			g.AddEdge(2, DependencyEdge{SourceID: 1})

			_, errOrder := g.TopoOrder()
			require.Error(t, errOrder)

			var schedErr *SchedulingError
			require.ErrorAs(t, errOrder, &schedErr)
			require.Equal(t, ErrKindCycleDetected, schedErr.Kind)
		},
	)

	t.Run(
		"3. reverse topo order inverts the forward order",
		func(t *testing.T) {
			g := NewDependencyGraph()
			g.AddEdge(2, DependencyEdge{SourceID: 1})
			g.AddEdge(3, DependencyEdge{SourceID: 2})

			forward, _ := g.TopoOrder()
			reverse, errReverse := g.ReverseTopoOrder()

			require.NoError(t, errReverse)
			require.Len(t, reverse, len(forward))
			require.Equal(t, forward[0], reverse[len(reverse)-1])
		},
	)

	t.Run(
		"4. disconnected nodes still appear exactly once",
		func(t *testing.T) {
			g := NewDependencyGraph()
			g.AddNode(1)
			g.AddNode(2)
			g.AddNode(3)

			order, errOrder := g.TopoOrder()
			require.NoError(t, errOrder)
			require.ElementsMatch(t, []int64{1, 2, 3}, order)
		},
	)
}
