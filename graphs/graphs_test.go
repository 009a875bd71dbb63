package graphs

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestTaskStrings(t *testing.T) {
	assert.Equal(t, "node_level", NodeLevel.String())
	assert.Equal(t, "link_level", LinkLevel.String())
	assert.Equal(t, "graph_level", GraphLevel.String())

	task, err := TaskString("graph_level")
	require.NoError(t, err)
	assert.Equal(t, GraphLevel, task)
	_, err = TaskString("pixel_level")
	require.Error(t, err)

	var parsed Task
	require.NoError(t, parsed.UnmarshalText([]byte("link_level")))
	assert.Equal(t, LinkLevel, parsed)
	assert.False(t, Task(99).IsATask())
}

func TestExampleInputs(t *testing.T) {
	v := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2)
	src := tensors.FromFlatDataAndDimensions([]int32{0, 1}, 2)
	tgt := tensors.FromFlatDataAndDimensions([]int32{1, 0}, 2)
	example := &Example{NodeFeatures: v, EdgeSources: src, EdgeTargets: tgt}
	assert.Equal(t, 2, example.NumNodes())
	assert.Equal(t, 2, example.NumEdges())
	assert.Len(t, example.Inputs(), 3)

	example.EdgeFeatures = tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2, 1)
	example.NodeToGraph = tensors.FromFlatDataAndDimensions([]int32{0, 0}, 2)
	inputs := example.Inputs()
	require.Len(t, inputs, 5)
	assert.Same(t, example.EdgeFeatures, inputs[3])
	assert.Same(t, example.NodeToGraph, inputs[4])
}

func TestSpecFromInputs(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	g := NewGraph(backend, "from-inputs")
	v := Const(g, [][]float32{{1, 2}, {3, 4}})
	src := Const(g, []int32{0, 1})
	tgt := Const(g, []int32{1, 0})
	feat := Const(g, [][]float32{{0.5}, {0.5}})
	n2g := Const(g, []int32{0, 0})
	extra := Const(g, []float32{7})

	spec := &Spec{Name: "test", Task: GraphLevel, HasEdgeFeatures: true, HasNodeToGraph: true, NumGraphs: 1}
	state, remaining := spec.FromInputs([]*Node{v, src, tgt, feat, n2g, extra})
	assert.Same(t, v, state.V)
	assert.Same(t, src, state.Batch.EdgeSources)
	assert.Same(t, tgt, state.Batch.EdgeTargets)
	assert.Same(t, feat, state.Batch.EdgeData["feat"])
	assert.Same(t, n2g, state.Batch.NodeToGraph)
	assert.Equal(t, 1, state.Batch.NumGraphs)
	require.Len(t, remaining, 1)
	assert.Same(t, extra, remaining[0])

	require.Panics(t, func() { spec.FromInputs([]*Node{v, src, tgt}) })
}

func TestEdgeEndpointConcat(t *testing.T) {
	graphtest.RunTestGraphFn(t, "EdgeEndpointConcat",
		func(g *Graph) (inputs, outputs []*Node) {
			v := Const(g, [][]float32{{1, 2}, {3, 4}, {5, 6}})
			b := &Batch{
				EdgeSources: Const(g, []int32{0, 2}),
				EdgeTargets: Const(g, []int32{1, 0}),
			}
			inputs = []*Node{v}
			outputs = []*Node{EdgeEndpointConcat(b, v)}
			return
		}, []any{
			[][]float32{{1, 2, 3, 4}, {5, 6, 1, 2}},
		}, 0)
}

func TestMeanNodes(t *testing.T) {
	graphtest.RunTestGraphFn(t, "MeanNodes",
		func(g *Graph) (inputs, outputs []*Node) {
			v := Const(g, [][]float32{{1, 2}, {3, 4}, {5, 6}})
			b := &Batch{
				EdgeSources: Const(g, []int32{0}),
				EdgeTargets: Const(g, []int32{1}),
				NodeToGraph: Const(g, []int32{0, 0, 1}),
				NumGraphs:   2,
			}
			inputs = []*Node{v}
			outputs = []*Node{MeanNodes(b, v)}
			return
		}, []any{
			[][]float32{{2, 3}, {5, 6}},
		}, 1e-6)
}

func TestSumEdgesToTargets(t *testing.T) {
	graphtest.RunTestGraphFn(t, "SumEdgesToTargets",
		func(g *Graph) (inputs, outputs []*Node) {
			messages := Const(g, [][]float32{{1, 1}, {2, 2}, {4, 8}})
			b := &Batch{
				EdgeSources: Const(g, []int32{0, 2, 2}),
				EdgeTargets: Const(g, []int32{1, 0, 1}),
			}
			inputs = []*Node{messages}
			outputs = []*Node{SumEdgesToTargets(b, messages, 3)}
			return
		}, []any{
			[][]float32{{2, 2}, {5, 9}, {0, 0}},
		}, 0)
}
