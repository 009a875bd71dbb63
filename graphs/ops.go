package graphs

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/shapes"
)

// EdgeEndpointConcat builds per-edge features from per-node features: for
// every edge it concatenates the source and target node rows of v, returning
// a tensor shaped `[numEdges, 2*dim]` for v shaped `[numNodes, dim]`.
func EdgeEndpointConcat(b *Batch, v *Node) *Node {
	if v.Rank() != 2 {
		Panicf("EdgeEndpointConcat: node features must be shaped [numNodes, dim], got %s", v.Shape())
	}
	src := Gather(v, InsertAxes(b.EdgeSources, -1))
	dst := Gather(v, InsertAxes(b.EdgeTargets, -1))
	return Concatenate([]*Node{src, dst}, -1)
}

// MeanNodes is the mean readout: the per-graph average of the node features v,
// shaped `[Batch.NumGraphs, dim]`. The per-graph sums are accumulated with a
// scatter over Batch.NodeToGraph and divided by the per-graph node counts.
func MeanNodes(b *Batch, v *Node) *Node {
	if b.NodeToGraph == nil {
		Panicf("MeanNodes requires a batch with node-to-graph assignments (graph-level datasets)")
	}
	if v.Rank() != 2 {
		Panicf("MeanNodes: node features must be shaped [numNodes, dim], got %s", v.Shape())
	}
	g := v.Graph()
	dtype := v.DType()
	numNodes := v.Shape().Dimensions[0]
	dim := v.Shape().Dimensions[1]
	indices := InsertAxes(b.NodeToGraph, -1)
	sums := Scatter(indices, v, shapes.Make(dtype, b.NumGraphs, dim))
	counts := Scatter(indices, Ones(g, shapes.Make(dtype, numNodes, 1)),
		shapes.Make(dtype, b.NumGraphs, 1))
	counts = MaxScalar(counts, 1) // Guard against empty graphs in the batch.
	return Div(sums, counts)
}

// SumEdgesToTargets aggregates per-edge messages into per-node sums: each
// row of messages, shaped `[numEdges, dim]`, is added to its edge's target
// node, returning `[numNodes, dim]`. Nodes without incoming edges get zeros.
func SumEdgesToTargets(b *Batch, messages *Node, numNodes int) *Node {
	if messages.Rank() != 2 {
		Panicf("SumEdgesToTargets: messages must be shaped [numEdges, dim], got %s", messages.Shape())
	}
	dim := messages.Shape().Dimensions[1]
	return Scatter(InsertAxes(b.EdgeTargets, -1), messages,
		shapes.Make(messages.DType(), numNodes, dim))
}
