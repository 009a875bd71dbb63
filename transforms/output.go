package transforms

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gnnbench/graphs"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/fnn"
)

// Output is the task-specific read-out head applied to the model body's node
// features before loss computation. The task mode is fixed at construction:
//
//   - [graphs.NodeLevel]: MLP over the node features, one row of logits per node.
//   - [graphs.LinkLevel]: per-edge features built by concatenating the source
//     and target node features, then an MLP, one row of logits per edge.
//   - [graphs.GraphLevel]: mean readout of the node features per graph, then
//     an MLP, one row of logits per graph.
//
// The MLP has NumMLPLayers hidden layers of the mode's input width
// (2*NodeDim for link level, NodeDim otherwise) and NumClasses outputs.
type Output struct {
	task         graphs.Task
	nodeDim      int
	numClasses   int
	numMLPLayers int
}

// NewOutput builds the head for the given task. Any task outside the three
// defined modes is a fatal misconfiguration and panics immediately.
func NewOutput(task graphs.Task, nodeDim, numClasses, numMLPLayers int) *Output {
	switch task {
	case graphs.NodeLevel, graphs.LinkLevel, graphs.GraphLevel:
	default:
		Panicf("unknown task %d for output transform", task)
	}
	return &Output{
		task:         task,
		nodeDim:      nodeDim,
		numClasses:   numClasses,
		numMLPLayers: numMLPLayers,
	}
}

// Apply reads the node features out of the state and returns the logits for
// the head's task. As a side effect it stashes the final node features into
// the batch's NodeData (and the edge features into EdgeData for link-level
// tasks), where downstream inspection code expects them.
func (t *Output) Apply(ctx *context.Context, state *graphs.State) *Node {
	batch, v := state.Batch, state.V
	switch t.task {
	case graphs.NodeLevel:
		return t.mlp(ctx, v, t.nodeDim)
	case graphs.LinkLevel:
		batch.NodeData["V"] = v
		edgeFeatures := graphs.EdgeEndpointConcat(batch, v)
		batch.EdgeData["e"] = edgeFeatures
		return t.mlp(ctx, edgeFeatures, 2*t.nodeDim)
	case graphs.GraphLevel:
		batch.NodeData["V"] = v
		readout := graphs.MeanNodes(batch, v)
		return t.mlp(ctx, readout, t.nodeDim)
	}
	Panicf("unknown task %d for output transform", t.task)
	panic(nil) // Quiet linter.
}

func (t *Output) mlp(ctx *context.Context, x *Node, hiddenDim int) *Node {
	return fnn.New(ctx.In("trans_output"), x, t.numClasses).
		NumHiddenLayers(t.numMLPLayers, hiddenDim).
		Done()
}
