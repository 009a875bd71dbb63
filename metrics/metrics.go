// Package metrics provides the per-dataset-family evaluation metrics of the
// benchmark suite, all implementing the metrics.Interface of GoMLX. As with
// the losses, which family a dataset gets is decided by the dispatch table
// in the root package.
package metrics

import (
	"fmt"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	mlmetrics "github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// MAE is the metric of the molecular regression datasets (ZINC, QM9): the
// mean absolute error between predicted and true property.
func MAE() mlmetrics.Interface {
	return mlmetrics.NewMeanMetric("mean absolute error", "MAE", "mae", maeGraph, nil)
}

func maeGraph(_ *context.Context, labels, predictions []*Node) *Node {
	predictions0 := predictions[0]
	labels0 := ConvertDType(labels[0], predictions0.DType())
	if labels0.Rank() != predictions0.Rank() {
		labels0 = Reshape(labels0, predictions0.Shape().Dimensions...)
	}
	return ReduceAllMean(Abs(Sub(labels0, predictions0)))
}

// SuperPixAccuracy is the metric of the superpixel datasets (MNIST,
// CIFAR10): fraction of images whose class logits argmax is the true class.
func SuperPixAccuracy() mlmetrics.Interface {
	return mlmetrics.NewMeanMetric("superpixel accuracy", "acc", mlmetrics.AccuracyMetricType,
		accuracyGraph, accuracyPPrint)
}

// CiteAccuracy is the metric of the citation datasets (Cora): per-node
// accuracy restricted to the nodes selected by the split mask.
func CiteAccuracy() mlmetrics.Interface {
	return mlmetrics.NewMeanMetric("citation accuracy", "acc", mlmetrics.AccuracyMetricType,
		accuracyGraph, accuracyPPrint)
}

// TUAccuracy is the metric of the TU graph-classification datasets
// (ENZYMES, DD, PROTEINS_full).
func TUAccuracy() mlmetrics.Interface {
	return mlmetrics.NewMeanMetric("TU accuracy", "acc", mlmetrics.AccuracyMetricType,
		accuracyGraph, accuracyPPrint)
}

// SBMAccuracy is the metric of the SBM node-classification datasets: the
// macro average of the per-community accuracies, so small communities count
// as much as large ones.
func SBMAccuracy(numClasses int) mlmetrics.Interface {
	graphFn := func(_ *context.Context, labels, logits []*Node) *Node {
		return sbmAccuracyGraph(numClasses, labels, logits)
	}
	return mlmetrics.NewMeanMetric("SBM accuracy", "acc", mlmetrics.AccuracyMetricType,
		graphFn, accuracyPPrint)
}

func accuracyPPrint(value *tensors.Tensor) string {
	return fmt.Sprintf("%.2f%%", shapes.ConvertTo[float64](value.Value())*100.0)
}

// accuracyGraph is the plain sparse-categorical accuracy: fraction of rows
// whose logits argmax equals the label. An optional extra boolean tensor in
// labels (the split mask of the citation datasets) restricts the count to
// the selected rows.
func accuracyGraph(_ *context.Context, labels, logits []*Node) *Node {
	logits0 := logits[0]
	dtype := logits0.DType()
	predicted := ArgMax(logits0, -1, dtypes.Int32)
	labels0 := flatLabels(labels[0])
	correct := ConvertDType(Equal(predicted, ConvertDType(labels0, dtypes.Int32)), dtype)
	if len(labels) > 1 && labels[1].DType() == dtypes.Bool {
		mask := ConvertDType(labels[1], dtype)
		return Div(ReduceAllSum(Mul(correct, mask)), MaxScalar(ReduceAllSum(mask), 1))
	}
	return ReduceAllMean(correct)
}

// sbmAccuracyGraph averages the accuracy of each community present in the
// batch: acc(c) = correct(c)/count(c), result = mean over present c.
func sbmAccuracyGraph(numClasses int, labels, logits []*Node) *Node {
	logits0 := logits[0]
	g := logits0.Graph()
	dtype := logits0.DType()
	labels0 := labels[0]
	if labels0.Rank() == 1 {
		labels0 = InsertAxes(labels0, -1)
	}
	n := labels0.Shape().Dimensions[0]

	predicted := ArgMax(logits0, -1, dtypes.Int32)
	correct := ConvertDType(Equal(predicted, Reshape(ConvertDType(labels0, dtypes.Int32), n)), dtype)

	counts := Scatter(labels0, Ones(g, shapes.Make(dtype, n, 1)),
		shapes.Make(dtype, numClasses, 1))
	hits := Scatter(labels0, InsertAxes(correct, -1),
		shapes.Make(dtype, numClasses, 1))
	present := PositiveIndicator(counts)
	perClass := Div(hits, MaxScalar(counts, 1))
	return Div(ReduceAllSum(Mul(perClass, present)), MaxScalar(ReduceAllSum(present), 1))
}

func flatLabels(labels *Node) *Node {
	if labels.Rank() > 1 && labels.Shape().Dimensions[labels.Rank()-1] == 1 {
		return Reshape(labels, labels.Shape().Dimensions[:labels.Rank()-1]...)
	}
	return labels
}
