package transforms

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gnnbench/graphs"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func buildTestState(g *Graph, featureDim int) *graphs.State {
	return &graphs.State{
		Batch: &graphs.Batch{
			EdgeSources: Const(g, []int32{0, 1, 2}),
			EdgeTargets: Const(g, []int32{1, 2, 0}),
			NodeToGraph: Const(g, []int32{0, 0, 1}),
			NumGraphs:   2,
			NodeData:    make(map[string]*Node),
			EdgeData:    make(map[string]*Node),
		},
		V: IotaFull(g, shapes.Make(dtypes.Float32, 3, featureDim)),
	}
}

func TestFeatureConcat(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	g := NewGraph(backend, "feature-concat")

	x := Const(g, [][]int32{{0, 2}, {1, 0}, {2, 1}})
	out := FeatureConcat(ctx, x, dtypes.Float32, []int{3, 4}, 8, true)
	assert.Equal(t, []int{3, 8}, out.Shape().Dimensions)
	assert.Equal(t, dtypes.Float32, out.DType())

	numCreated := ctx.NumVariables()
	assert.Equal(t, 4, numCreated) // 2 embedding tables + projection weights and biases.

	ResetFeatureConcat(ctx)
	assert.Zero(t, ctx.NumVariables())
}

func TestFeatureConcatValidatesInput(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	g := NewGraph(backend, "feature-concat-bad")

	require.Panics(t, func() {
		FeatureConcat(ctx, Const(g, [][]float32{{1}}), dtypes.Float32, []int{3}, 8, false)
	})
	require.Panics(t, func() {
		FeatureConcat(ctx, Const(g, [][]int32{{1, 2}}), dtypes.Float32, []int{3}, 8, false)
	})
}

func TestInputKinds(t *testing.T) {
	backend := graphtest.BuildTestBackend()

	t.Run("none", func(t *testing.T) {
		ctx := context.New()
		g := NewGraph(backend, "input-none")
		state := buildTestState(g, 5)
		v := state.V
		input := &Input{Kind: InputNone}
		state = input.Apply(ctx, state)
		assert.Same(t, v, state.V)
		assert.Zero(t, ctx.NumVariables())
	})

	t.Run("embed", func(t *testing.T) {
		ctx := context.New()
		g := NewGraph(backend, "input-embed")
		state := buildTestState(g, 1)
		state.V = Const(g, [][]int32{{0}, {1}, {2}})
		input := &Input{Kind: InputEmbed, InDimV: 7, NodeDim: 16, DType: dtypes.Float32}
		state = input.Apply(ctx, state)
		assert.Equal(t, []int{3, 16}, state.V.Shape().Dimensions)
		assert.Equal(t, dtypes.Float32, state.V.DType())
	})

	t.Run("linear", func(t *testing.T) {
		ctx := context.New()
		g := NewGraph(backend, "input-linear")
		state := buildTestState(g, 5)
		input := &Input{Kind: InputLinear, InDimV: 5, NodeDim: 16, DType: dtypes.Float32}
		state = input.Apply(ctx, state)
		assert.Equal(t, []int{3, 16}, state.V.Shape().Dimensions)
	})

	t.Run("unknown kind", func(t *testing.T) {
		ctx := context.New()
		g := NewGraph(backend, "input-unknown")
		state := buildTestState(g, 5)
		input := &Input{Kind: InputKind(99)}
		require.Panics(t, func() { input.Apply(ctx, state) })
	})
}

func TestOutputShapes(t *testing.T) {
	backend := graphtest.BuildTestBackend()

	t.Run("node level", func(t *testing.T) {
		ctx := context.New()
		g := NewGraph(backend, "output-node")
		state := buildTestState(g, 4)
		logits := NewOutput(graphs.NodeLevel, 4, 7, 2).Apply(ctx, state)
		assert.Equal(t, []int{3, 7}, logits.Shape().Dimensions)
	})

	t.Run("link level", func(t *testing.T) {
		ctx := context.New()
		g := NewGraph(backend, "output-link")
		state := buildTestState(g, 4)
		logits := NewOutput(graphs.LinkLevel, 4, 2, 2).Apply(ctx, state)
		assert.Equal(t, []int{3, 2}, logits.Shape().Dimensions) // One row per edge.
		assert.Same(t, state.V, state.Batch.NodeData["V"])
		require.Contains(t, state.Batch.EdgeData, "e")
		assert.Equal(t, []int{3, 8}, state.Batch.EdgeData["e"].Shape().Dimensions)
	})

	t.Run("graph level", func(t *testing.T) {
		ctx := context.New()
		g := NewGraph(backend, "output-graph")
		state := buildTestState(g, 4)
		logits := NewOutput(graphs.GraphLevel, 4, 10, 1).Apply(ctx, state)
		assert.Equal(t, []int{2, 10}, logits.Shape().Dimensions) // One row per graph.
		assert.Same(t, state.V, state.Batch.NodeData["V"])
	})
}

func TestNewOutputUnknownTask(t *testing.T) {
	require.Panics(t, func() { NewOutput(graphs.Task(99), 4, 2, 1) })
}

func TestOutputApplyUnknownTask(t *testing.T) {
	// A head whose task was corrupted after construction still panics at
	// apply time.
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	g := NewGraph(backend, "output-unknown")
	state := buildTestState(g, 4)
	output := &Output{task: graphs.Task(99), nodeDim: 4, numClasses: 2, numMLPLayers: 1}
	require.Panics(t, func() { output.Apply(ctx, state) })
}
