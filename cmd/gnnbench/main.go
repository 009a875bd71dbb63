// gnnbench trains and evaluates a message-passing model on one of the
// benchmark datasets. Model and training hyperparameters are context params,
// settable with --set (see --help for the full list).
//
// Examples:
//
//	gnnbench --dataset=ZINC --data=~/work/gnnbench
//	gnnbench --dataset=SBM_PATTERN --set="train_steps=5000;node_dim=128"
//	gnnbench --dataset=Cora --eval --checkpoint=cora_run1
package main

import (
	"flag"
	"fmt"
	"path"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gnnbench"
	"github.com/gomlx/gnnbench/datasets"
	"github.com/gomlx/gnnbench/datasets/citation"
	"github.com/gomlx/gnnbench/datasets/molecules"
	"github.com/gomlx/gnnbench/datasets/qm9"
	"github.com/gomlx/gnnbench/datasets/sbms"
	"github.com/gomlx/gnnbench/datasets/superpixels"
	"github.com/gomlx/gnnbench/graphs"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	mldata "github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/train"
	mlmetrics "github.com/gomlx/gomlx/ml/train/metrics"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagDataset    = flag.String("dataset", "ZINC", "Benchmark dataset, one of: ZINC, QM9, TSP, SBM_CLUSTER, SBM_PATTERN, CIFAR10, MNIST, Cora, ENZYMES, DD, PROTEINS_full.")
	flagDataDir    = flag.String("data", "~/work/gnnbench", "Directory to cache downloaded and generated dataset files.")
	flagEval       = flag.Bool("eval", false, "Set to true to run evaluation instead of training.")
	flagCheckpoint = flag.String("checkpoint", "", "Checkpoint subdirectory under --data. If empty no checkpoints are saved.")
	flagExtraFeats = flag.Bool("extra_features", false, "QM9 only: append Mulliken partial charges to the atom features.")
)

func createDefaultContext() *context.Context {
	ctx := context.New()
	ctx.RngStateReset()
	ctx.SetParams(map[string]any{
		"train_steps":     2000,
		"num_checkpoints": 3,

		"node_dim":       64,
		"num_messages":   4,
		"num_mlp_layers": 2,

		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: 0.001,
		optimizers.ParamAdamEpsilon:  1e-7,

		layers.ParamL2Regularization: 1e-5,
		layers.ParamDropoutRate:      0.0,
		layers.ParamActivation:       "relu",
	})
	return ctx
}

// buildConfig fills the per-dataset run configuration: task level, input
// feature width (vocabulary size for the embedding-input datasets, left 0
// here and inferred from the loaded data for the linear ones) and label
// cardinality.
func buildConfig(ctx *context.Context, dataset, dataDir string) *gnnbench.Config {
	cfg := &gnnbench.Config{
		Dataset:       dataset,
		NodeDim:       context.GetParamOr(ctx, "node_dim", 64),
		NumMLPLayers:  context.GetParamOr(ctx, "num_mlp_layers", 2),
		DataDir:       dataDir,
		DType:         dtypes.Float32,
		ExtraFeatures: *flagExtraFeats,
	}
	switch dataset {
	case "ZINC":
		cfg.Task = graphs.GraphLevel
		cfg.InDimV = molecules.NumAtomTypes
		cfg.NumClasses = 1
	case "QM9":
		cfg.Task = graphs.GraphLevel
		cfg.NumClasses = 1
	case "TSP":
		cfg.Task = graphs.LinkLevel
		cfg.NumClasses = 2
	case "SBM_PATTERN":
		cfg.Task = graphs.NodeLevel
		cfg.InDimV = sbms.PatternVocabSize
		cfg.NumClasses = sbms.PatternNumClasses
	case "SBM_CLUSTER":
		cfg.Task = graphs.NodeLevel
		cfg.InDimV = sbms.ClusterVocabSize
		cfg.NumClasses = sbms.ClusterNumClasses
	case "CIFAR10", "MNIST":
		cfg.Task = graphs.GraphLevel
		cfg.NumClasses = superpixels.NumClasses
	case "Cora":
		cfg.Task = graphs.NodeLevel
		cfg.InDimV = citation.NumFeatures
		cfg.NumClasses = citation.NumClasses
	case "ENZYMES":
		cfg.Task = graphs.GraphLevel
		cfg.NumClasses = 6
	case "DD", "PROTEINS_full":
		cfg.Task = graphs.GraphLevel
		cfg.NumClasses = 2
	default:
		klog.Fatalf("unknown dataset %q, see --help for the supported names", dataset)
	}
	if dataset == "QM9" {
		cfg.InDimV = qm9.NumElements
		if cfg.ExtraFeatures {
			cfg.InDimV++
		}
	}
	return cfg
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Border(lipgloss.RoundedBorder()).Padding(0, 2)
	cellStyle = lipgloss.NewStyle().Padding(0, 1)
	keyStyle  = cellStyle.Bold(true)
)

func printRunSummary(cfg *gnnbench.Config, trainDS, validDS, testDS *datasets.InMemory) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("gnnbench: %s (%s)", cfg.Dataset, cfg.Task)))
	rows := [][2]string{
		{"Train graphs", humanize.Comma(int64(trainDS.NumExamples()))},
		{"Validation graphs", humanize.Comma(int64(validDS.NumExamples()))},
		{"Test graphs", humanize.Comma(int64(testDS.NumExamples()))},
		{"Input feature width", humanize.Comma(int64(cfg.InDimV))},
		{"Node dim", humanize.Comma(int64(cfg.NodeDim))},
		{"Classes", humanize.Comma(int64(cfg.NumClasses))},
	}
	for _, row := range rows {
		fmt.Println(keyStyle.Render(row[0]) + cellStyle.Render(row[1]))
	}
}

func main() {
	backend := backends.New()
	ctx := createDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	must.M(commandline.ParseContextSettings(ctx, *settings))

	*flagDataDir = mldata.ReplaceTildeInDir(*flagDataDir)
	cfg := buildConfig(ctx, *flagDataset, *flagDataDir)

	fmt.Printf("Loading %s ... ", cfg.Dataset)
	start := time.Now()
	source := gnnbench.LoadDataset(cfg)
	must.M(source.Download())
	trainDS, validDS, testDS := must.M3(source.Splits())
	fmt.Printf("elapsed: %s\n", time.Since(start))

	trainIM := trainDS.(*datasets.InMemory)
	validIM := validDS.(*datasets.InMemory)
	testIM := testDS.(*datasets.InMemory)
	if cfg.InDimV == 0 {
		cfg.InDimV = trainIM.NodeFeatureDim()
	}
	printRunSummary(cfg, trainIM, validIM, testIM)

	trainer := train.NewTrainer(backend, ctx,
		newModelFn(cfg),
		gnnbench.LossFn(cfg),
		optimizers.FromContext(ctx),
		nil, // trainMetrics
		[]mlmetrics.Interface{gnnbench.Metric(cfg)})

	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	var checkpoint *checkpoints.Handler
	if *flagCheckpoint != "" {
		checkpointPath := *flagCheckpoint
		if !path.IsAbs(checkpointPath) {
			checkpointPath = path.Join(*flagDataDir, checkpointPath)
		}
		numCheckpoints := context.GetParamOr(ctx, "num_checkpoints", 3)
		checkpoint = must.M1(checkpoints.Build(ctx).
			Dir(checkpointPath).Keep(numCheckpoints).Done())
		fmt.Printf("Model checkpoints in %s\n", checkpoint.Dir())
	} else if *flagEval {
		klog.Exit("To run eval (--eval) you need to specify a checkpoint (--checkpoint).")
	}

	if !*flagEval {
		numTrainSteps := context.GetParamOr(ctx, "train_steps", 0)
		globalStep := int(optimizers.GetGlobalStep(ctx))
		if globalStep > 0 {
			trainer.SetContext(ctx.Reuse())
		}
		if globalStep < numTrainSteps {
			_ = must.M1(loop.RunSteps(trainDS, numTrainSteps-globalStep))
			fmt.Printf("\t[Step %d] median train step: %d microseconds\n",
				loop.LoopStep, loop.MedianTrainStepDuration().Microseconds())
		} else {
			fmt.Printf("\t - target train_steps=%d already reached, nothing to do.\n", numTrainSteps)
		}
		if checkpoint != nil {
			must.M(checkpoint.Save())
		}
	}

	must.M(commandline.ReportEval(trainer, validDS, testDS))
}
