// Package transforms holds the tensor-level transforms that wrap a GNN model
// body: the concatenating categorical feature encoder, the optional input
// transform applied to node features before the body runs, and the
// task-specific output heads applied before loss computation.
package transforms

import (
	"fmt"

	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gopjrt/dtypes"
)

// FeatureConcatScope is the context scope under which [FeatureConcat] creates
// its embedding tables and projection, and the scope
// [ResetFeatureConcat] clears.
const FeatureConcatScope = "feature_concat"

// FeatureConcat embeds several categorical features independently and
// projects their concatenation to hiddenSize.
//
// The input x must be an integer tensor shaped `[..., len(featureDims)]`:
// column i indexes an embedding table shaped `[featureDims[i], hiddenSize]`.
// The embeddings are concatenated on the last axis and passed through one
// dense layer `len(featureDims)*hiddenSize -> hiddenSize`, so the output is
// shaped `[..., hiddenSize]` with the given dtype.
//
// If padding is true, index 0 of every table is treated as padding and maps
// to a fixed all-zeros vector.
func FeatureConcat(ctx *context.Context, x *Node, dtype dtypes.DType, featureDims []int, hiddenSize int, padding bool) *Node {
	if !x.DType().IsInt() {
		Panicf("FeatureConcat requires integer categorical inputs, got %s", x.Shape())
	}
	numFeatures := x.Shape().Dimensions[x.Rank()-1]
	if numFeatures != len(featureDims) {
		Panicf("FeatureConcat configured with %d features, input has %d (shape %s)",
			len(featureDims), numFeatures, x.Shape())
	}
	ctx = ctx.In(FeatureConcatScope)
	parts := make([]*Node, 0, numFeatures)
	for i, dim := range featureDims {
		col := SliceAxis(x, -1, AxisElem(i)) // Shaped [..., 1].
		embedded := layers.Embedding(ctx.In(fmt.Sprintf("embedding_%d", i)), col, dtype, dim, hiddenSize, false)
		if padding {
			keep := NotEqual(col, ZerosLike(col))
			embedded = Where(BroadcastToShape(keep, embedded.Shape()), embedded, ZerosLike(embedded))
		}
		parts = append(parts, embedded)
	}
	concatenated := Concatenate(parts, -1)
	return layers.DenseWithBias(ctx.In("projection"), concatenated, hiddenSize)
}

// ResetFeatureConcat drops every embedding table and the projection created
// by [FeatureConcat] under ctx, so they are freshly re-initialized on the
// next graph build.
func ResetFeatureConcat(ctx *context.Context) {
	ctx.In(FeatureConcatScope).DeleteVariablesInScope()
}
