package transforms

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gnnbench/graphs"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gopjrt/dtypes"
)

// InputKind selects how -- and whether -- the raw node features are
// transformed before the model body runs.
type InputKind int

const (
	// InputNone passes the node features through unchanged.
	InputNone InputKind = iota

	// InputEmbed looks the integer node features up in an embedding table
	// shaped `[InDimV, NodeDim]`.
	InputEmbed

	// InputLinear projects the continuous node features with a dense layer
	// `InDimV -> NodeDim`.
	InputLinear
)

// Input is the optional transform applied to the node features of a
// [graphs.State] before the model body. Which kind a dataset gets is decided
// by the dispatch table in the root package.
type Input struct {
	Kind    InputKind
	InDimV  int
	NodeDim int
	DType   dtypes.DType
}

// Apply replaces state.V with the transformed node features, in place, and
// returns the state for chaining. The graph batch is not touched. With kind
// [InputNone] this is the identity.
func (t *Input) Apply(ctx *context.Context, state *graphs.State) *graphs.State {
	switch t.Kind {
	case InputNone:
	case InputEmbed:
		state.V = layers.Embedding(ctx.In("trans_input"), state.V, t.DType, t.InDimV, t.NodeDim, false)
	case InputLinear:
		state.V = layers.DenseWithBias(ctx.In("trans_input"), state.V, t.NodeDim)
	default:
		Panicf("unknown input transform kind %d", t.Kind)
	}
	return state
}
