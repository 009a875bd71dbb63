package main

import (
	"fmt"

	"github.com/gomlx/gnnbench"
	"github.com/gomlx/gnnbench/graphs"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
)

// newModelFn assembles the benchmark model: input transform, a few rounds of
// message passing over the explicit adjacency, then the task-level readout.
// The message and update widths follow cfg.NodeDim, the number of rounds the
// "num_messages" context param.
func newModelFn(cfg *gnnbench.Config) func(ctx *context.Context, spec any, inputs []*Node) []*Node {
	input := gnnbench.InputTransform(cfg)
	output := gnnbench.OutputTransform(cfg)
	return func(ctx *context.Context, spec any, inputs []*Node) []*Node {
		gspec := spec.(*graphs.Spec)
		state, _ := gspec.FromInputs(inputs)
		state = input.Apply(ctx, state)
		numMessages := context.GetParamOr(ctx, "num_messages", 4)
		for round := range numMessages {
			state.V = messageRound(ctx.In(fmt.Sprintf("message_%d", round)), state, cfg.NodeDim)
		}
		return []*Node{output.Apply(ctx, state)}
	}
}

// messageRound is one message-passing step: per-edge messages computed from
// the endpoint features (plus edge features when the dataset has them),
// sum-pooled into the target nodes and combined with the previous node state.
func messageRound(ctx *context.Context, state *graphs.State, nodeDim int) *Node {
	b := state.Batch
	edgeInputs := graphs.EdgeEndpointConcat(b, state.V)
	if feat, found := b.EdgeData["feat"]; found {
		edgeInputs = Concatenate([]*Node{edgeInputs, ConvertDType(feat, edgeInputs.DType())}, -1)
	}
	messages := layers.DenseWithBias(ctx.In("message"), edgeInputs, nodeDim)
	messages = activations.ApplyFromContext(ctx, messages)

	numNodes := state.V.Shape().Dimensions[0]
	pooled := graphs.SumEdgesToTargets(b, messages, numNodes)
	update := Concatenate([]*Node{state.V, pooled}, -1)
	update = layers.DenseWithBias(ctx.In("update"), update, nodeDim)
	return activations.ApplyFromContext(ctx, update)
}
