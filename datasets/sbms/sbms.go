// Package sbms generates the SBM_PATTERN and SBM_CLUSTER node-classification
// datasets: random graphs drawn from stochastic block models with the
// benchmark's block sizes and edge probabilities. Generation is deterministic
// given the split seeds, so no download is needed.
//
// SBM_PATTERN plants a denser pattern subgraph inside each graph and asks
// whether a node belongs to it (2 classes). SBM_CLUSTER samples community
// structure directly, reveals one labeled node per community through the
// node features, and asks for each node's community (6 classes).
package sbms

import (
	"fmt"
	"math/rand"

	"github.com/gomlx/gnnbench/datasets"
	"github.com/gomlx/gnnbench/graphs"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Benchmark generation parameters.
const (
	blockSizeMin = 5
	blockSizeMax = 35

	patternBlocks    = 5
	patternProbIn    = 0.5
	patternProbOut   = 0.35
	patternSize      = 20
	patternProb      = 0.5
	patternVocabSize = 3

	clusterBlocks  = 6
	clusterProbIn  = 0.55
	clusterProbOut = 0.25

	trainShuffleSeed = 53
)

// PatternNumClasses and ClusterNumClasses are the label cardinalities of the
// two variants; PatternVocabSize and ClusterVocabSize the cardinalities of
// their integer node features.
const (
	PatternNumClasses = 2
	ClusterNumClasses = 6
	PatternVocabSize  = patternVocabSize
	ClusterVocabSize  = clusterBlocks + 1
)

var splitSizes = map[string]map[string]int{
	"SBM_PATTERN": {"train": 10000, "valid": 2000, "test": 2000},
	"SBM_CLUSTER": {"train": 10000, "valid": 1000, "test": 1000},
}

var splitSeeds = map[string]int64{"train": 1, "valid": 2, "test": 3}

var _ datasets.Source = (*Source)(nil)

// Source generates one of the SBM datasets. Create it with New.
type Source struct {
	name string
}

// New creates the source for the given SBM variant, "SBM_PATTERN" or
// "SBM_CLUSTER".
func New(name string) *Source {
	return &Source{name: name}
}

// Name implements datasets.Source.
func (s *Source) Name() string { return s.name }

// Download implements datasets.Source. Generated datasets have nothing to
// fetch.
func (s *Source) Download() error { return nil }

// Splits implements datasets.Source.
func (s *Source) Splits() (trainDS, validDS, testDS train.Dataset, err error) {
	sizes, found := splitSizes[s.name]
	if !found {
		return nil, nil, nil, errors.Errorf("unknown SBM variant %q", s.name)
	}
	numClasses := PatternNumClasses
	if s.name == "SBM_CLUSTER" {
		numClasses = ClusterNumClasses
	}
	spec := &graphs.Spec{Name: s.name, Task: graphs.NodeLevel, NumGraphs: 1}
	byName := map[string]train.Dataset{}
	for split, size := range sizes {
		examples := Generate(s.name, size, splitSeeds[split])
		var shuffle *rand.Rand
		if split == "train" {
			shuffle = rand.New(rand.NewSource(trainShuffleSeed))
		}
		byName[split] = datasets.NewInMemory(fmt.Sprintf("%s %s", s.name, split), spec, examples, shuffle)
	}
	klog.V(1).Infof("%s: generated %d/%d/%d graphs, %d classes",
		s.name, sizes["train"], sizes["valid"], sizes["test"], numClasses)
	return byName["train"], byName["valid"], byName["test"], nil
}

// Generate samples numGraphs graphs of the given variant from the seed.
// It panics on an unknown variant name, which Splits guards against.
func Generate(variant string, numGraphs int, seed int64) []*graphs.Example {
	rng := rand.New(rand.NewSource(seed))
	examples := make([]*graphs.Example, numGraphs)
	for i := range examples {
		switch variant {
		case "SBM_PATTERN":
			examples[i] = generatePattern(rng)
		case "SBM_CLUSTER":
			examples[i] = generateCluster(rng)
		default:
			panic(errors.Errorf("unknown SBM variant %q", variant))
		}
	}
	return examples
}

// generatePattern samples a background SBM, plants a denser pattern block
// and labels nodes by pattern membership. Features are random vocabulary
// indices, so models must rely on structure.
func generatePattern(rng *rand.Rand) *graphs.Example {
	blocks := sampleBlocks(rng, patternBlocks)
	blocks = append(blocks, patternSize)
	numNodes, blockOf := assignBlocks(blocks)

	features := make([]int32, numNodes)
	labels := make([]int32, numNodes)
	patternBlock := int32(len(blocks) - 1)
	for node := range numNodes {
		features[node] = int32(rng.Intn(patternVocabSize))
		if blockOf[node] == patternBlock {
			labels[node] = 1
		}
	}

	probFn := func(u, v int) float64 {
		if blockOf[u] != blockOf[v] {
			return patternProbOut
		}
		if blockOf[u] == patternBlock {
			return patternProb
		}
		return patternProbIn
	}
	sources, targets := sampleEdges(rng, numNodes, probFn)
	return buildExample(features, labels, sources, targets)
}

// generateCluster samples community structure and reveals one labeled node
// per community: its feature is community+1, every other node's is 0.
func generateCluster(rng *rand.Rand) *graphs.Example {
	blocks := sampleBlocks(rng, clusterBlocks)
	numNodes, blockOf := assignBlocks(blocks)

	features := make([]int32, numNodes)
	labels := make([]int32, numNodes)
	for node := range numNodes {
		labels[node] = blockOf[node]
	}
	start := 0
	for block, size := range blocks {
		features[start+rng.Intn(size)] = int32(block) + 1
		start += size
	}

	probFn := func(u, v int) float64 {
		if blockOf[u] == blockOf[v] {
			return clusterProbIn
		}
		return clusterProbOut
	}
	sources, targets := sampleEdges(rng, numNodes, probFn)
	return buildExample(features, labels, sources, targets)
}

func sampleBlocks(rng *rand.Rand, numBlocks int) []int {
	blocks := make([]int, numBlocks)
	for i := range blocks {
		blocks[i] = blockSizeMin + rng.Intn(blockSizeMax-blockSizeMin+1)
	}
	return blocks
}

func assignBlocks(blocks []int) (numNodes int, blockOf []int32) {
	for _, size := range blocks {
		numNodes += size
	}
	blockOf = make([]int32, 0, numNodes)
	for block, size := range blocks {
		for range size {
			blockOf = append(blockOf, int32(block))
		}
	}
	return
}

// sampleEdges draws each undirected node pair independently with the
// pair's probability and emits both directions.
func sampleEdges(rng *rand.Rand, numNodes int, probFn func(u, v int) float64) (sources, targets []int32) {
	for u := range numNodes {
		for v := u + 1; v < numNodes; v++ {
			if rng.Float64() < probFn(u, v) {
				sources = append(sources, int32(u), int32(v))
				targets = append(targets, int32(v), int32(u))
			}
		}
	}
	return
}

func buildExample(features, labels []int32, sources, targets []int32) *graphs.Example {
	numNodes := len(features)
	return &graphs.Example{
		NodeFeatures: tensors.FromFlatDataAndDimensions(features, numNodes, 1),
		EdgeSources:  tensors.FromFlatDataAndDimensions(sources, len(sources)),
		EdgeTargets:  tensors.FromFlatDataAndDimensions(targets, len(targets)),
		Labels:       tensors.FromFlatDataAndDimensions(labels, numNodes, 1),
	}
}
