package metrics

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestMAE(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	metric := MAE()
	assert.Equal(t, "MAE", metric.ShortName())

	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		labels := Const(g, [][]float32{{1}, {3}})
		predictions := Const(g, [][]float32{{2}, {3}})
		return metric.UpdateGraph(ctx, []*Node{labels}, []*Node{predictions})
	})
	got := exec.Call()[0]
	assert.InDelta(t, 0.5, tensors.ToScalar[float32](got), 1e-6)
}

func TestAccuracy(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	metric := TUAccuracy()

	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		labels := Const(g, [][]int32{{0}, {1}, {2}, {1}})
		logits := Const(g, [][]float32{
			{5, 0, 0}, // Right.
			{0, 5, 0}, // Right.
			{5, 0, 0}, // Wrong.
			{0, 0, 5}, // Wrong.
		})
		return metric.UpdateGraph(ctx, []*Node{labels}, []*Node{logits})
	})
	got := exec.Call()[0]
	assert.InDelta(t, 0.5, tensors.ToScalar[float32](got), 1e-6)
	assert.Equal(t, "50.00%", metric.PrettyPrint(got))
}

func TestAccuracyWithMask(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	metric := CiteAccuracy()

	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		labels := Const(g, [][]int32{{0}, {1}, {1}})
		mask := Const(g, []bool{true, false, true})
		logits := Const(g, [][]float32{
			{5, 0}, // Right, masked in.
			{5, 0}, // Wrong, but masked out.
			{0, 5}, // Right, masked in.
		})
		return metric.UpdateGraph(ctx, []*Node{labels, mask}, []*Node{logits})
	})
	got := exec.Call()[0]
	assert.InDelta(t, 1.0, tensors.ToScalar[float32](got), 1e-6)
}

func TestSBMAccuracy(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	metric := SBMAccuracy(3)

	// Class 0: 2 of 3 right; class 1: 0 of 1 right; class 2 absent.
	// Macro average over present classes: (2/3 + 0) / 2 = 1/3.
	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		labels := Const(g, [][]int32{{0}, {0}, {0}, {1}})
		logits := Const(g, [][]float32{
			{5, 0, 0},
			{5, 0, 0},
			{0, 5, 0},
			{5, 0, 0},
		})
		return metric.UpdateGraph(ctx, []*Node{labels}, []*Node{logits})
	})
	got := exec.Call()[0]
	assert.InDelta(t, 1.0/3, tensors.ToScalar[float32](got), 1e-6)
}

func TestBinaryF1Accumulates(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	metric := BinaryF1()
	require.NotEmpty(t, metric.ScopeName())

	ctx := context.New()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, labels, logits *Node) *Node {
		return metric.UpdateGraph(ctx, []*Node{labels}, []*Node{logits})
	})

	positive := []float32{0, 5}
	negative := []float32{5, 0}

	// Batch 1: one true positive, one false positive. F1 = 2/(2+1) = 2/3.
	labels := tensors.FromFlatDataAndDimensions([]int32{1, 0}, 2, 1)
	logits := tensors.FromFlatDataAndDimensions(append(positive, positive...), 2, 2)
	got := exec.Call(labels, logits)[0]
	assert.InDelta(t, 2.0/3, tensors.ToScalar[float32](got), 1e-6)

	// Batch 2 adds one true positive and one false negative: accumulated
	// TP=2, FP=1, FN=1, F1 = 4/6.
	labels = tensors.FromFlatDataAndDimensions([]int32{1, 1}, 2, 1)
	logits = tensors.FromFlatDataAndDimensions(append(positive, negative...), 2, 2)
	got = exec.Call(labels, logits)[0]
	assert.InDelta(t, 4.0/6, tensors.ToScalar[float32](got), 1e-6)

	// Reset drops the accumulated counters: a fresh perfect batch scores 1.
	require.NoError(t, metric.Reset(ctx))
	labels = tensors.FromFlatDataAndDimensions([]int32{1, 0}, 2, 1)
	logits = tensors.FromFlatDataAndDimensions(append(positive, negative...), 2, 2)
	got = exec.Call(labels, logits)[0]
	assert.InDelta(t, 1.0, tensors.ToScalar[float32](got), 1e-6)
}
