package datasets

import (
	"io"
	"math/rand"
	"sync"

	"github.com/gomlx/gnnbench/graphs"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
)

var (
	assertInMemoryIsTrainDataset *InMemory
	_                            train.Dataset = assertInMemoryIsTrainDataset
)

// InMemory is a train.Dataset over a slice of loaded [graphs.Example]
// values, yielding one example per step -- graphs have varying node and edge
// counts, so fixed-shape batching is left to the trainer (or to a
// re-batching wrapper).
//
// Yield is guarded by a mutex so the dataset can be wrapped by data.Parallel.
// After the last example it returns io.EOF until Reset, which also
// reshuffles when a rand.Rand was given.
type InMemory struct {
	name     string
	spec     *graphs.Spec
	examples []*graphs.Example

	mu       sync.Mutex
	shuffle  *rand.Rand
	indices  []int
	position int
}

// NewInMemory wraps the given examples as a train.Dataset. A nil shuffle
// yields the examples in order, which is what evaluation splits use.
func NewInMemory(name string, spec *graphs.Spec, examples []*graphs.Example, shuffle *rand.Rand) *InMemory {
	ds := &InMemory{
		name:     name,
		spec:     spec,
		examples: examples,
		shuffle:  shuffle,
	}
	ds.reshuffle()
	return ds
}

// Name implements train.Dataset.
func (ds *InMemory) Name() string { return ds.name }

// Spec of the examples the dataset yields.
func (ds *InMemory) Spec() *graphs.Spec { return ds.spec }

// NumExamples loaded.
func (ds *InMemory) NumExamples() int { return len(ds.examples) }

// NodeFeatureDim is the feature width of the examples' node features.
func (ds *InMemory) NodeFeatureDim() int {
	if len(ds.examples) == 0 {
		return 0
	}
	return ds.examples[0].NodeFeatures.Shape().Dimensions[1]
}

// Yield implements train.Dataset. The spec is the dataset's *graphs.Spec,
// the inputs are the example's graph tensors (see graphs.Example.Inputs) and
// the labels hold the target tensor plus, if the example carries one, the
// boolean split mask.
func (ds *InMemory) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.position >= len(ds.indices) {
		return nil, nil, nil, io.EOF
	}
	example := ds.examples[ds.indices[ds.position]]
	ds.position++

	labels = []*tensors.Tensor{example.Labels}
	if example.Mask != nil {
		labels = append(labels, example.Mask)
	}
	return ds.spec, example.Inputs(), labels, nil
}

// Reset implements train.Dataset: rewinds to the start of a new epoch,
// reshuffling if the dataset was created with a rand.Rand.
func (ds *InMemory) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.position = 0
	ds.reshuffle()
}

func (ds *InMemory) reshuffle() {
	if ds.shuffle != nil {
		ds.indices = ds.shuffle.Perm(len(ds.examples))
		return
	}
	if ds.indices == nil {
		ds.indices = make([]int, len(ds.examples))
		for i := range ds.indices {
			ds.indices[i] = i
		}
	}
}
