// Package losses provides the per-dataset-family loss functions of the
// benchmark suite, all implementing train.LossFn. The family a dataset
// belongs to is decided by the dispatch table in the root package.
package losses

import (
	. "github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/train"
	mllosses "github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gomlx/types/shapes"
)

// Molecules is the regression loss of the molecular datasets (ZINC, QM9):
// mean absolute error between the predicted and true property.
func Molecules() train.LossFn {
	return mllosses.MeanAbsoluteError
}

// TSP is the loss of the TSP edge-classification dataset: class-weighted
// cross-entropy over the two edge classes (on-tour / off-tour). The weighting
// matters because only a small fraction of the candidate edges are on the
// optimal tour.
func TSP() train.LossFn {
	return weightedCrossEntropy(2)
}

// SBMs is the loss of the SBM node-classification datasets, a class-weighted
// cross-entropy over numClasses communities. Weights are recomputed per batch
// from the label histogram, so rare communities are not drowned out.
func SBMs(numClasses int) train.LossFn {
	return weightedCrossEntropy(numClasses)
}

// SuperPix is the loss of the superpixel image datasets (MNIST, CIFAR10):
// plain cross-entropy on the graph-level logits.
func SuperPix() train.LossFn {
	return mllosses.SparseCategoricalCrossEntropyLogits
}

// Cite is the loss of the citation datasets (Cora): cross-entropy on node
// logits, honoring the split mask the dataset provides as an extra label.
func Cite() train.LossFn {
	return mllosses.SparseCategoricalCrossEntropyLogits
}

// TUs is the loss of the TU graph-classification datasets (ENZYMES, DD,
// PROTEINS_full): plain cross-entropy on the graph-level logits.
func TUs() train.LossFn {
	return mllosses.SparseCategoricalCrossEntropyLogits
}

// weightedCrossEntropy returns a sparse categorical cross-entropy where each
// example is weighted by the inverse in-batch frequency of its class:
// weight(c) = n / (numClasses * count(c)), 0 for classes absent from the
// batch. The result is already reduced to the weighted mean.
func weightedCrossEntropy(numClasses int) train.LossFn {
	return func(labels, predictions []*Node) *Node {
		logits := predictions[0]
		labels0 := labels[0]
		if !labels0.DType().IsInt() {
			Panicf("weighted cross-entropy requires integer labels, got %s", labels0.Shape())
		}
		if labels0.Rank() != 2 || labels0.Shape().Dimensions[1] != 1 {
			Panicf("weighted cross-entropy labels must be shaped [n, 1], got %s", labels0.Shape())
		}
		g := logits.Graph()
		dtype := logits.DType()
		n := labels0.Shape().Dimensions[0]

		counts := Scatter(labels0, Ones(g, shapes.Make(dtype, n, 1)),
			shapes.Make(dtype, numClasses, 1))
		present := PositiveIndicator(counts)
		perClass := Div(
			Scalar(g, dtype, float64(n)),
			MulScalar(MaxScalar(counts, 1), float64(numClasses)))
		perClass = Mul(present, perClass) // Absent classes weigh zero.

		weights := Reshape(Gather(perClass, labels0), n)
		losses := mllosses.SparseCategoricalCrossEntropyLogits(
			[]*Node{labels0, weights}, predictions)
		totalWeight := MaxScalar(ReduceAllSum(weights), 1e-6)
		return Div(ReduceAllSum(losses), totalWeight)
	}
}
