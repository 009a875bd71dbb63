// Package graphs defines the graph-batch representation shared by the gnnbench
// datasets, transforms and models: an explicit adjacency (edge source/target
// index tensors) plus named node- and edge-tensor maps, the equivalent of the
// `ndata`/`edata` storage of the usual graph libraries.
//
// Host-side, datasets produce [Example] values (one graph as tensors).
// Graph-side, model functions rebuild a [Batch] from the flat `[]*Node` inputs
// provided by a train.Dataset, using the dataset's [Spec].
package graphs

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/tensors"
)

//go:generate go tool enumer -type=Task -transform=snake -text

// Task is the prediction level of a benchmark dataset: one output per node,
// per edge or per graph.
type Task int

const (
	NodeLevel Task = iota
	LinkLevel
	GraphLevel
)

// Example is one graph on the host side, as produced by the dataset loaders.
//
// NodeFeatures is shaped `[numNodes, featureDim]` (or `[numNodes, 1]` integer
// categories for the embedding-input datasets). EdgeSources and EdgeTargets
// are `(Int32)[numEdges]`. EdgeFeatures and NodeToGraph are optional.
// Labels holds the target tensor of the dataset's task level, and Mask an
// optional boolean mask selecting which of those targets count (used by the
// single-graph citation datasets for their train/validation/test splits).
type Example struct {
	NodeFeatures *tensors.Tensor
	EdgeSources  *tensors.Tensor
	EdgeTargets  *tensors.Tensor
	EdgeFeatures *tensors.Tensor
	NodeToGraph  *tensors.Tensor

	Labels *tensors.Tensor
	Mask   *tensors.Tensor
}

// NumNodes of the example's graph.
func (e *Example) NumNodes() int { return e.NodeFeatures.Shape().Dimensions[0] }

// NumEdges of the example's graph.
func (e *Example) NumEdges() int { return e.EdgeSources.Shape().Dimensions[0] }

// Inputs flattens the example into the inputs slice yielded by a
// train.Dataset, in the order [Spec.FromInputs] expects them back.
func (e *Example) Inputs() []*tensors.Tensor {
	inputs := []*tensors.Tensor{e.NodeFeatures, e.EdgeSources, e.EdgeTargets}
	if e.EdgeFeatures != nil {
		inputs = append(inputs, e.EdgeFeatures)
	}
	if e.NodeToGraph != nil {
		inputs = append(inputs, e.NodeToGraph)
	}
	return inputs
}

// Spec describes the inputs layout of a dataset, and is returned as the
// `spec` value of its train.Dataset. It is static per dataset.
type Spec struct {
	Name string
	Task Task

	// HasEdgeFeatures and HasNodeToGraph flag the presence of the optional
	// inputs in the flattened inputs slice.
	HasEdgeFeatures bool
	HasNodeToGraph  bool

	// NumGraphs per yielded batch. It is 1 for the graph-level datasets
	// (batching is the trainer's concern) and for the single-graph
	// node-level datasets.
	NumGraphs int
}

// Batch is the graph-side view of one yielded graph (or batch of graphs):
// adjacency tensors plus the named node/edge storage that the output
// transforms stash intermediate features into.
type Batch struct {
	EdgeSources *Node // (Int32)[numEdges]
	EdgeTargets *Node // (Int32)[numEdges]
	NodeToGraph *Node // (Int32)[numNodes], nil when Spec.HasNodeToGraph is false
	NumGraphs   int

	NodeData map[string]*Node
	EdgeData map[string]*Node
}

// NumEdges in the batch.
func (b *Batch) NumEdges() int { return b.EdgeSources.Shape().Dimensions[0] }

// State is the value threaded through the transform pipeline: the graph batch
// and the current node features "V". Transforms replace V in place and leave
// the batch untouched, except for the documented NodeData/EdgeData stashes.
type State struct {
	Batch *Batch
	V     *Node
}

// FromInputs rebuilds the [Batch] and node features from the flat inputs
// slice of a model function, consuming the nodes the spec declares and
// returning any remaining inputs untouched.
func (spec *Spec) FromInputs(inputs []*Node) (state *State, remaining []*Node) {
	minInputs := 3
	if spec.HasEdgeFeatures {
		minInputs++
	}
	if spec.HasNodeToGraph {
		minInputs++
	}
	if len(inputs) < minInputs {
		Panicf("dataset %q declares %d graph inputs, model function got only %d", spec.Name, minInputs, len(inputs))
	}
	batch := &Batch{
		NumGraphs: spec.NumGraphs,
		NodeData:  make(map[string]*Node),
		EdgeData:  make(map[string]*Node),
	}
	state = &State{Batch: batch, V: inputs[0]}
	batch.EdgeSources, batch.EdgeTargets = inputs[1], inputs[2]
	pos := 3
	if spec.HasEdgeFeatures {
		batch.EdgeData["feat"] = inputs[pos]
		pos++
	}
	if spec.HasNodeToGraph {
		batch.NodeToGraph = inputs[pos]
		pos++
	}
	return state, inputs[pos:]
}
