// Package tsp loads the traveling-salesman edge-classification dataset:
// uniformly sampled 2D cities with a Concorde-optimal tour per instance.
// Each instance becomes a k-nearest-neighbor graph whose nodes carry the
// city coordinates, whose edges carry the Euclidean distance, and whose
// per-edge label marks membership in the optimal tour.
package tsp

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/gomlx/gnnbench/datasets"
	"github.com/gomlx/gnnbench/graphs"
	mldata "github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	downloadURL = "https://data.dgl.ai/dataset/benchmarking-gnns/TSP.zip"
	zipName     = "TSP.zip"
	subDir      = "TSP"

	// NumNeighbors is the k of the k-nearest-neighbor graph built over the
	// city coordinates.
	NumNeighbors = 25

	trainShuffleSeed = 31
)

var splitFiles = map[string]string{
	"train": "tsp50-500_train.txt",
	"valid": "tsp50-500_val.txt",
	"test":  "tsp50-500_test.txt",
}

var _ datasets.Source = (*Source)(nil)

// Source is the TSP dataset. Create it with New.
type Source struct {
	name    string
	baseDir string
}

// New creates the TSP source, caching downloads under baseDir.
func New(name, baseDir string) *Source {
	return &Source{name: name, baseDir: baseDir}
}

// Name implements datasets.Source.
func (s *Source) Name() string { return s.name }

// Download implements datasets.Source.
func (s *Source) Download() error {
	dir, err := datasets.CacheDir(s.baseDir, "tsp")
	if err != nil {
		return err
	}
	return mldata.DownloadAndUnzipIfMissing(downloadURL, path.Join(dir, zipName), dir, path.Join(dir, subDir), "")
}

// Splits implements datasets.Source.
func (s *Source) Splits() (trainDS, validDS, testDS train.Dataset, err error) {
	dir, err := datasets.CacheDir(s.baseDir, "tsp")
	if err != nil {
		return nil, nil, nil, err
	}
	spec := &graphs.Spec{
		Name:            s.name,
		Task:            graphs.LinkLevel,
		HasEdgeFeatures: true,
		NumGraphs:       1,
	}
	byName := map[string]train.Dataset{}
	for split, fileName := range splitFiles {
		examples, err := ParseFile(path.Join(dir, subDir, fileName), NumNeighbors)
		if err != nil {
			return nil, nil, nil, err
		}
		var shuffle *rand.Rand
		if split == "train" {
			shuffle = rand.New(rand.NewSource(trainShuffleSeed))
		}
		byName[split] = datasets.NewInMemory(fmt.Sprintf("%s %s", s.name, split), spec, examples, shuffle)
	}
	return byName["train"], byName["valid"], byName["test"], nil
}

// ParseFile reads one instances file, one instance per line in the form
//
//	x1 y1 x2 y2 ... xn yn output i1 i2 ... in i1
//
// with 1-based tour indices after the "output" separator, and converts each
// instance to a k-nearest-neighbor graph with tour-membership edge labels.
func ParseFile(filePath string, numNeighbors int) ([]*graphs.Example, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()

	var examples []*graphs.Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		example, err := ParseInstance(line, numNeighbors)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s:%d", filePath, lineNum)
		}
		examples = append(examples, example)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed reading %q", filePath)
	}
	klog.V(1).Infof("TSP: %d instances from %s", len(examples), filePath)
	return examples, nil
}

// ParseInstance converts one instance line to an Example.
func ParseInstance(line string, numNeighbors int) (*graphs.Example, error) {
	coordPart, tourPart, found := strings.Cut(line, " output ")
	if !found {
		return nil, errors.New("missing \"output\" separator")
	}
	coordFields := strings.Fields(coordPart)
	if len(coordFields) == 0 || len(coordFields)%2 != 0 {
		return nil, errors.Errorf("expected an even number of coordinates, got %d", len(coordFields))
	}
	numNodes := len(coordFields) / 2
	x := make([]float64, numNodes)
	y := make([]float64, numNodes)
	coords := make([]float32, 0, 2*numNodes)
	for node := range numNodes {
		var err error
		if x[node], err = strconv.ParseFloat(coordFields[2*node], 64); err != nil {
			return nil, err
		}
		if y[node], err = strconv.ParseFloat(coordFields[2*node+1], 64); err != nil {
			return nil, err
		}
		coords = append(coords, float32(x[node]), float32(y[node]))
	}

	onTour, err := tourEdges(tourPart, numNodes)
	if err != nil {
		return nil, err
	}

	sources, targets := graphs.KNNEdges(x, y, numNeighbors)
	numEdges := len(sources)
	distances := make([]float32, numEdges)
	labels := make([]int32, numEdges)
	for edge := range numEdges {
		src, tgt := sources[edge], targets[edge]
		distances[edge] = float32(graphs.EuclideanDistance(x, y, int(src), int(tgt)))
		if onTour[edgeKey(src, tgt)] {
			labels[edge] = 1
		}
	}
	return &graphs.Example{
		NodeFeatures: tensors.FromFlatDataAndDimensions(coords, numNodes, 2),
		EdgeSources:  tensors.FromFlatDataAndDimensions(sources, numEdges),
		EdgeTargets:  tensors.FromFlatDataAndDimensions(targets, numEdges),
		EdgeFeatures: tensors.FromFlatDataAndDimensions(distances, numEdges, 1),
		Labels:       tensors.FromFlatDataAndDimensions(labels, numEdges, 1),
	}, nil
}

// tourEdges parses the 1-based tour node sequence and returns the set of
// undirected edges it traverses.
func tourEdges(tourPart string, numNodes int) (map[int64]bool, error) {
	fields := strings.Fields(tourPart)
	if len(fields) < 2 {
		return nil, errors.New("tour too short")
	}
	tour := make([]int32, len(fields))
	for i, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		if v < 1 || v > numNodes {
			return nil, errors.Errorf("tour index %d out of range [1, %d]", v, numNodes)
		}
		tour[i] = int32(v - 1)
	}
	onTour := make(map[int64]bool, 2*len(tour))
	for i := 0; i+1 < len(tour); i++ {
		onTour[edgeKey(tour[i], tour[i+1])] = true
		onTour[edgeKey(tour[i+1], tour[i])] = true
	}
	return onTour, nil
}

func edgeKey(src, tgt int32) int64 {
	return int64(src)<<32 | int64(uint32(tgt))
}
