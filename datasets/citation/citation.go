// Package citation loads the Cora citation-network dataset: one graph whose
// nodes are papers (bag-of-words features, one of seven topic classes) and
// whose edges are citations. The three splits share the graph and differ
// only in the boolean mask selecting which nodes are scored, the usual
// semi-supervised setup: 20 nodes per class for training, 500 nodes for
// validation and 1000 for testing.
package citation

import (
	"bufio"
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
	downloadURL = "https://linqs-data.soe.ucsc.edu/public/lbc/cora.tgz"
	tarName     = "cora.tgz"
	subDir      = "cora"

	// NumFeatures is the bag-of-words vocabulary size of cora.content.
	NumFeatures = 1433

	// NumClasses is the number of paper topics.
	NumClasses = 7

	trainPerClass = 20
	numValid      = 500
	numTest       = 1000
)

var classNames = []string{
	"Case_Based", "Genetic_Algorithms", "Neural_Networks",
	"Probabilistic_Methods", "Reinforcement_Learning", "Rule_Learning", "Theory",
}

var _ datasets.Source = (*Source)(nil)

// Source is the Cora dataset. Create it with New.
type Source struct {
	name    string
	baseDir string
}

// New creates the source for the given citation dataset name ("Cora"),
// caching downloads under baseDir.
func New(name, baseDir string) *Source {
	return &Source{name: name, baseDir: baseDir}
}

// Name implements datasets.Source.
func (s *Source) Name() string { return s.name }

// Download implements datasets.Source.
func (s *Source) Download() error {
	dir, err := datasets.CacheDir(s.baseDir, "citation")
	if err != nil {
		return err
	}
	return mldata.DownloadAndUntarIfMissing(downloadURL, dir, tarName, path.Join(dir, subDir), "")
}

// Splits implements datasets.Source. Every split yields the same full graph;
// the split mask is passed as an extra label tensor, which both the Cite
// loss and the citation accuracy metric honor.
func (s *Source) Splits() (trainDS, validDS, testDS train.Dataset, err error) {
	dir, err := datasets.CacheDir(s.baseDir, "citation")
	if err != nil {
		return nil, nil, nil, err
	}
	base, err := ParseContent(path.Join(dir, subDir, "cora.content"), path.Join(dir, subDir, "cora.cites"))
	if err != nil {
		return nil, nil, nil, err
	}
	spec := &graphs.Spec{Name: s.name, Task: graphs.NodeLevel, NumGraphs: 1}
	trainMask, validMask, testMask := splitMasks(base)
	trainDS = datasets.NewInMemory(s.name+" train", spec, []*graphs.Example{withMask(base, trainMask)}, nil)
	validDS = datasets.NewInMemory(s.name+" valid", spec, []*graphs.Example{withMask(base, validMask)}, nil)
	testDS = datasets.NewInMemory(s.name+" test", spec, []*graphs.Example{withMask(base, testMask)}, nil)
	return
}

// ParseContent reads the cora.content (one line per paper: id, word
// occurrences, class name) and cora.cites (cited-paper citing-paper pairs)
// files into a single Example. Citation edges are added in both directions.
func ParseContent(contentPath, citesPath string) (*graphs.Example, error) {
	classOf := make(map[string]int32, NumClasses)
	for i, name := range classNames {
		classOf[name] = int32(i)
	}

	var features []float32
	var labels []int32
	nodeOf := map[string]int32{}
	err := scanLines(contentPath, func(line string) error {
		fields := strings.Fields(line)
		if len(fields) != NumFeatures+2 {
			return errors.Errorf("expected %d fields, got %d", NumFeatures+2, len(fields))
		}
		class, found := classOf[fields[len(fields)-1]]
		if !found {
			return errors.Errorf("unknown class %q", fields[len(fields)-1])
		}
		nodeOf[fields[0]] = int32(len(labels))
		labels = append(labels, class)
		for _, word := range fields[1 : len(fields)-1] {
			v, err := strconv.ParseFloat(word, 32)
			if err != nil {
				return err
			}
			features = append(features, float32(v))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var sources, targets []int32
	err = scanLines(citesPath, func(line string) error {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return errors.Errorf("citation line %q is not a pair", line)
		}
		cited, foundCited := nodeOf[fields[0]]
		citing, foundCiting := nodeOf[fields[1]]
		if !foundCited || !foundCiting {
			// The raw archive references a handful of papers without content rows.
			klog.V(2).Infof("skipping citation %q with unknown paper", line)
			return nil
		}
		sources = append(sources, citing, cited)
		targets = append(targets, cited, citing)
		return nil
	})
	if err != nil {
		return nil, err
	}

	numNodes := len(labels)
	klog.V(1).Infof("Cora: %d papers, %d citation edges", numNodes, len(sources)/2)
	return &graphs.Example{
		NodeFeatures: tensors.FromFlatDataAndDimensions(features, numNodes, NumFeatures),
		EdgeSources:  tensors.FromFlatDataAndDimensions(sources, len(sources)),
		EdgeTargets:  tensors.FromFlatDataAndDimensions(targets, len(targets)),
		Labels:       tensors.FromFlatDataAndDimensions(labels, numNodes, 1),
	}, nil
}

// splitMasks builds the conventional semi-supervised masks in file order:
// the first trainPerClass nodes of each class train, the following numValid
// unassigned nodes validate, the last numTest nodes test.
func splitMasks(example *graphs.Example) (trainMask, validMask, testMask []bool) {
	numNodes := example.NumNodes()
	trainMask = make([]bool, numNodes)
	validMask = make([]bool, numNodes)
	testMask = make([]bool, numNodes)

	labels := tensors.CopyFlatData[int32](example.Labels)
	perClass := make([]int, NumClasses)
	for node, class := range labels {
		if perClass[class] < trainPerClass {
			trainMask[node] = true
			perClass[class]++
		}
	}
	validLeft := numValid
	for node := range numNodes {
		if validLeft == 0 {
			break
		}
		if !trainMask[node] {
			validMask[node] = true
			validLeft--
		}
	}
	for node := max(0, numNodes-numTest); node < numNodes; node++ {
		if !trainMask[node] && !validMask[node] {
			testMask[node] = true
		}
	}
	return
}

func withMask(base *graphs.Example, mask []bool) *graphs.Example {
	masked := *base
	masked.Mask = tensors.FromFlatDataAndDimensions(mask, len(mask))
	return &masked
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
