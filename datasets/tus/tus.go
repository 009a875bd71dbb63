// Package tus loads the TU graph-classification datasets used by the
// benchmark: ENZYMES, DD and PROTEINS_full, published as zip archives of
// plain-text adjacency/indicator/label files by the graph-kernel datasets
// collection (https://chrsmrrs.github.io/datasets/).
package tus

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
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"k8s.io/klog/v2"
)

const downloadURLFormat = "https://www.chrsmrrs.com/graphkerneldatasets/%s.zip"

// Names of the TU datasets the benchmark uses.
var Names = []string{"ENZYMES", "DD", "PROTEINS_full"}

const splitSeed = 41

var _ datasets.Source = (*Source)(nil)

// Source is one TU dataset. Create it with New.
type Source struct {
	name    string
	baseDir string
}

// New creates the source for one of the TU dataset Names, caching downloads
// under baseDir.
func New(name, baseDir string) *Source {
	return &Source{name: name, baseDir: baseDir}
}

// Name implements datasets.Source.
func (s *Source) Name() string { return s.name }

// Download implements datasets.Source: fetches and unzips the dataset
// archive if its directory is not already present.
func (s *Source) Download() error {
	dir, err := datasets.CacheDir(s.baseDir, "tus")
	if err != nil {
		return err
	}
	url := fmt.Sprintf(downloadURLFormat, s.name)
	zipPath := path.Join(dir, s.name+".zip")
	targetDir := path.Join(dir, s.name)
	return mldata.DownloadAndUnzipIfMissing(url, zipPath, dir, targetDir, "")
}

// Splits implements datasets.Source: parses the text files and partitions
// the graphs 80/10/10 with a fixed seed.
func (s *Source) Splits() (trainDS, validDS, testDS train.Dataset, err error) {
	examples, err := s.load()
	if err != nil {
		return nil, nil, nil, err
	}
	spec := &graphs.Spec{
		Name:           s.name,
		Task:           graphs.GraphLevel,
		HasNodeToGraph: true,
		NumGraphs:      1,
	}
	rng := rand.New(rand.NewSource(splitSeed))
	trainIdx, validIdx, testIdx := datasets.SplitIndices(len(examples), 0.8, 0.1, rng)
	pick := func(indices []int) []*graphs.Example {
		picked := make([]*graphs.Example, 0, len(indices))
		for _, i := range indices {
			picked = append(picked, examples[i])
		}
		return picked
	}
	trainDS = datasets.NewInMemory(s.name+" train", spec, pick(trainIdx), rand.New(rand.NewSource(splitSeed)))
	validDS = datasets.NewInMemory(s.name+" valid", spec, pick(validIdx), nil)
	testDS = datasets.NewInMemory(s.name+" test", spec, pick(testIdx), nil)
	return
}

// load parses the unzipped dataset directory into one Example per graph.
func (s *Source) load() ([]*graphs.Example, error) {
	dir, err := datasets.CacheDir(s.baseDir, "tus")
	if err != nil {
		return nil, err
	}
	return Parse(path.Join(dir, s.name), s.name)
}

// Parse reads the graph-kernel text format from dir: the files
// `<name>_A.txt` (edges, 1-based global node ids), `<name>_graph_indicator.txt`
// (graph id per node), `<name>_graph_labels.txt` (label per graph) and,
// when present, `<name>_node_attributes.txt` (continuous node features) or
// `<name>_node_labels.txt` (categorical node labels, used one-hot when there
// are no attributes).
func Parse(dir, name string) ([]*graphs.Example, error) {
	nodeToGraph, err := readIntColumn(path.Join(dir, name+"_graph_indicator.txt"))
	if err != nil {
		return nil, err
	}
	graphLabels, err := readIntColumn(path.Join(dir, name+"_graph_labels.txt"))
	if err != nil {
		return nil, err
	}
	edges, err := readEdges(path.Join(dir, name+"_A.txt"))
	if err != nil {
		return nil, err
	}
	features, err := readNodeFeatures(dir, name, len(nodeToGraph))
	if err != nil {
		return nil, err
	}

	numGraphs := len(graphLabels)
	labelMap := remapLabels(graphLabels)

	// Global node id -> (graph, local id), 0-based.
	graphOfNode := make([]int, len(nodeToGraph))
	localID := make([]int32, len(nodeToGraph))
	nodesPerGraph := make([]int, numGraphs)
	for node, graphID := range nodeToGraph {
		gi := graphID - 1
		if gi < 0 || gi >= numGraphs {
			return nil, errors.Errorf("%s: node %d assigned to out-of-range graph %d", name, node+1, graphID)
		}
		graphOfNode[node] = gi
		localID[node] = int32(nodesPerGraph[gi])
		nodesPerGraph[gi]++
	}

	type edgeList struct{ sources, targets []int32 }
	edgesPerGraph := make([]edgeList, numGraphs)
	for _, e := range edges {
		src, dst := e[0]-1, e[1]-1
		if src < 0 || src >= len(nodeToGraph) || dst < 0 || dst >= len(nodeToGraph) {
			return nil, errors.Errorf("%s: edge (%d, %d) references unknown nodes", name, e[0], e[1])
		}
		gi := graphOfNode[src]
		if graphOfNode[dst] != gi {
			return nil, errors.Errorf("%s: edge (%d, %d) crosses graphs", name, e[0], e[1])
		}
		edgesPerGraph[gi].sources = append(edgesPerGraph[gi].sources, localID[src])
		edgesPerGraph[gi].targets = append(edgesPerGraph[gi].targets, localID[dst])
	}

	if len(features) == 0 {
		return nil, errors.Errorf("%s: %s_graph_indicator.txt lists no nodes", name, name)
	}
	featureDim := len(features[0])
	featuresPerGraph := make([][]float32, numGraphs)
	for node, row := range features {
		featuresPerGraph[graphOfNode[node]] = append(featuresPerGraph[graphOfNode[node]], row...)
	}

	examples := make([]*graphs.Example, 0, numGraphs)
	for gi := range numGraphs {
		numNodes := nodesPerGraph[gi]
		if numNodes == 0 {
			klog.Warningf("%s: graph %d has no nodes, skipped", name, gi+1)
			continue
		}
		examples = append(examples, &graphs.Example{
			NodeFeatures: tensors.FromFlatDataAndDimensions(featuresPerGraph[gi], numNodes, featureDim),
			EdgeSources:  tensors.FromFlatDataAndDimensions(edgesPerGraph[gi].sources, len(edgesPerGraph[gi].sources)),
			EdgeTargets:  tensors.FromFlatDataAndDimensions(edgesPerGraph[gi].targets, len(edgesPerGraph[gi].targets)),
			NodeToGraph:  tensors.FromFlatDataAndDimensions(make([]int32, numNodes), numNodes),
			Labels:       tensors.FromFlatDataAndDimensions([]int32{labelMap[graphLabels[gi]]}, 1, 1),
		})
	}
	klog.V(1).Infof("%s: parsed %d graphs, %d nodes, feature dim %d", name, len(examples), len(nodeToGraph), featureDim)
	return examples, nil
}

// remapLabels maps the raw graph labels (which may be -1/1 or 1..k depending
// on the dataset) to dense 0-based classes in sorted raw-label order.
func remapLabels(labels []int) map[int]int32 {
	unique := map[int]bool{}
	for _, l := range labels {
		unique[l] = true
	}
	sorted := maps.Keys(unique)
	slices.Sort(sorted)
	mapped := make(map[int]int32, len(sorted))
	for i, l := range sorted {
		mapped[l] = int32(i)
	}
	return mapped
}

// readNodeFeatures prefers the continuous node attributes file; with only
// node labels available, it one-hot encodes them.
func readNodeFeatures(dir, name string, numNodes int) ([][]float32, error) {
	attributesPath := path.Join(dir, name+"_node_attributes.txt")
	if mldata.FileExists(attributesPath) {
		rows, err := readFloatRows(attributesPath)
		if err != nil {
			return nil, err
		}
		if len(rows) != numNodes {
			return nil, errors.Errorf("%s: %d node attribute rows for %d nodes", name, len(rows), numNodes)
		}
		return rows, nil
	}
	nodeLabels, err := readIntColumn(path.Join(dir, name+"_node_labels.txt"))
	if err != nil {
		return nil, err
	}
	if len(nodeLabels) != numNodes {
		return nil, errors.Errorf("%s: %d node labels for %d nodes", name, len(nodeLabels), numNodes)
	}
	labelMap := remapLabels(nodeLabels)
	rows := make([][]float32, numNodes)
	for node, l := range nodeLabels {
		row := make([]float32, len(labelMap))
		row[labelMap[l]] = 1
		rows[node] = row
	}
	return rows, nil
}

func readIntColumn(filePath string) ([]int, error) {
	var values []int
	err := scanLines(filePath, func(line string) error {
		v, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return err
		}
		values = append(values, v)
		return nil
	})
	return values, err
}

func readEdges(filePath string) ([][2]int, error) {
	var edges [][2]int
	err := scanLines(filePath, func(line string) error {
		parts := strings.Split(line, ",")
		if len(parts) != 2 {
			return errors.Errorf("edge line %q is not a pair", line)
		}
		src, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return err
		}
		dst, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return err
		}
		edges = append(edges, [2]int{src, dst})
		return nil
	})
	return edges, err
}

func readFloatRows(filePath string) ([][]float32, error) {
	var rows [][]float32
	err := scanLines(filePath, func(line string) error {
		parts := strings.Split(line, ",")
		row := make([]float32, 0, len(parts))
		for _, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
			if err != nil {
				return err
			}
			row = append(row, float32(v))
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func scanLines(filePath string, fn func(line string) error) error {
	f, err := os.Open(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return errors.WithMessagef(err, "%s:%d", filePath, lineNum)
		}
	}
	return errors.Wrapf(scanner.Err(), "failed reading %q", filePath)
}
