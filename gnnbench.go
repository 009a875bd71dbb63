// Package gnnbench wires graph-neural-network benchmark runs together: it
// maps each dataset name of the benchmark suite to its loader, its input
// transform, its loss and its evaluation metric, so a driver only needs the
// run Config to assemble a full pipeline.
//
// The dataset names are fixed: ZINC, QM9, TSP, SBM_CLUSTER, SBM_PATTERN,
// CIFAR10, MNIST, Cora, ENZYMES, DD and PROTEINS_full. Every dispatch
// function panics on any other name; using an unknown task level panics as
// well. Those are the only two fatal misconfigurations.
package gnnbench

import (
	. "github.com/gomlx/exceptions"
	"github.com/gomlx/gnnbench/datasets"
	"github.com/gomlx/gnnbench/datasets/citation"
	"github.com/gomlx/gnnbench/datasets/molecules"
	"github.com/gomlx/gnnbench/datasets/qm9"
	"github.com/gomlx/gnnbench/datasets/sbms"
	"github.com/gomlx/gnnbench/datasets/superpixels"
	"github.com/gomlx/gnnbench/datasets/tsp"
	"github.com/gomlx/gnnbench/datasets/tus"
	"github.com/gomlx/gnnbench/graphs"
	"github.com/gomlx/gnnbench/losses"
	"github.com/gomlx/gnnbench/metrics"
	"github.com/gomlx/gnnbench/transforms"
	"github.com/gomlx/gomlx/ml/train"
	mlmetrics "github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gopjrt/dtypes"
)

// DatasetNames lists every dataset the dispatch functions accept.
var DatasetNames = []string{
	"ZINC", "QM9", "TSP", "SBM_CLUSTER", "SBM_PATTERN",
	"CIFAR10", "MNIST", "Cora", "ENZYMES", "DD", "PROTEINS_full",
}

// Config describes one benchmark run. It is immutable once the driver built
// it: the dispatch functions only read it.
type Config struct {
	// Dataset is one of DatasetNames.
	Dataset string

	// Task is the prediction level, usually taken from the dataset's
	// graphs.Spec.
	Task graphs.Task

	// InDimV is the node-feature input width: the vocabulary size for
	// embedding inputs, the feature dimension for linear ones.
	InDimV int

	// NodeDim is the hidden width of node representations.
	NodeDim int

	// NumClasses is the label cardinality (1 for regression).
	NumClasses int

	// NumMLPLayers is the number of hidden layers of the readout MLP.
	NumMLPLayers int

	// DataDir is where datasets are downloaded and cached.
	DataDir string

	// DType is the dtype of the model's floating-point computation.
	DType dtypes.DType

	// ExtraFeatures appends the Mulliken partial charges to QM9's atom
	// features. Ignored by every other dataset.
	ExtraFeatures bool
}

// InputTransform returns the node-feature transform for cfg.Dataset:
// an embedding table for the datasets with integer vocabulary features
// (ZINC, the SBMs), a linear projection for everything else.
func InputTransform(cfg *Config) *transforms.Input {
	kind := transforms.InputLinear
	switch cfg.Dataset {
	case "ZINC", "SBM_CLUSTER", "SBM_PATTERN":
		kind = transforms.InputEmbed
	case "QM9", "TSP", "CIFAR10", "MNIST", "Cora", "ENZYMES", "DD", "PROTEINS_full":
	default:
		Panicf("unknown dataset %q", cfg.Dataset)
	}
	return &transforms.Input{
		Kind:    kind,
		InDimV:  cfg.InDimV,
		NodeDim: cfg.NodeDim,
		DType:   cfg.DType,
	}
}

// OutputTransform returns the task-level readout for cfg.Task.
func OutputTransform(cfg *Config) *transforms.Output {
	return transforms.NewOutput(cfg.Task, cfg.NodeDim, cfg.NumClasses, cfg.NumMLPLayers)
}

// LossFn returns the training loss for cfg.Dataset.
func LossFn(cfg *Config) train.LossFn {
	switch cfg.Dataset {
	case "ZINC", "QM9":
		return losses.Molecules()
	case "TSP":
		return losses.TSP()
	case "SBM_CLUSTER", "SBM_PATTERN":
		return losses.SBMs(cfg.NumClasses)
	case "CIFAR10", "MNIST":
		return losses.SuperPix()
	case "Cora":
		return losses.Cite()
	case "ENZYMES", "DD", "PROTEINS_full":
		return losses.TUs()
	}
	Panicf("unknown dataset %q", cfg.Dataset)
	panic(nil) // Quiet linter.
}

// Metric returns the evaluation metric for cfg.Dataset.
func Metric(cfg *Config) mlmetrics.Interface {
	switch cfg.Dataset {
	case "ZINC", "QM9":
		return metrics.MAE()
	case "TSP":
		return metrics.BinaryF1()
	case "SBM_CLUSTER", "SBM_PATTERN":
		return metrics.SBMAccuracy(cfg.NumClasses)
	case "CIFAR10", "MNIST":
		return metrics.SuperPixAccuracy()
	case "Cora":
		return metrics.CiteAccuracy()
	case "ENZYMES", "DD", "PROTEINS_full":
		return metrics.TUAccuracy()
	}
	Panicf("unknown dataset %q", cfg.Dataset)
	panic(nil) // Quiet linter.
}

// LoadDataset returns the dataset source for cfg.Dataset. It does not
// download or parse anything yet, see datasets.Source.
func LoadDataset(cfg *Config) datasets.Source {
	switch cfg.Dataset {
	case "ZINC":
		return molecules.New(cfg.Dataset, cfg.DataDir)
	case "QM9":
		return qm9.New(cfg.Dataset, cfg.DataDir, cfg.ExtraFeatures)
	case "TSP":
		return tsp.New(cfg.Dataset, cfg.DataDir)
	case "SBM_CLUSTER", "SBM_PATTERN":
		return sbms.New(cfg.Dataset)
	case "CIFAR10", "MNIST":
		return superpixels.New(cfg.Dataset, cfg.DataDir)
	case "Cora":
		return citation.New(cfg.Dataset, cfg.DataDir)
	case "ENZYMES", "DD", "PROTEINS_full":
		return tus.New(cfg.Dataset, cfg.DataDir)
	}
	Panicf("unknown dataset %q", cfg.Dataset)
	panic(nil) // Quiet linter.
}
