// Package qm9 loads the QM9 quantum-chemistry dataset from its xyz archive:
// small organic molecules with DFT-computed properties. Each molecule
// becomes a graph whose nodes are atoms (one-hot element features, with the
// Mulliken partial charge optionally appended), whose edges connect atom
// pairs within a distance cutoff, and whose graph-level regression target is
// the dipole moment.
package qm9

import (
	"bufio"
	"math"
	"math/rand"
	"os"
	"path"
	"sort"
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
	downloadURL = "https://deepchemdata.s3-us-west-1.amazonaws.com/datasets/gdb9.tar.gz"
	tarName     = "gdb9.tar.gz"
	subDir      = "gdb9"

	// CutoffAngstrom is the inter-atom distance below which an edge is added.
	CutoffAngstrom = 5.0

	// numMolecules caps the subset loaded from the 134k-molecule archive.
	numMolecules = 12000

	trainFraction = 0.8
	validFraction = 0.1
	splitSeed     = 43
)

// Elements QM9 contains, in one-hot feature order.
var elements = []string{"H", "C", "N", "O", "F"}

// NumElements is the one-hot width of the base node features.
var NumElements = len(elements)

var elementIndex = func() map[string]int {
	m := make(map[string]int, len(elements))
	for i, symbol := range elements {
		m[symbol] = i
	}
	return m
}()

var _ datasets.Source = (*Source)(nil)

// Source is the QM9 dataset. Create it with New.
type Source struct {
	name          string
	baseDir       string
	extraFeatures bool
}

// New creates the QM9 source, caching downloads under baseDir. With
// extraFeatures the Mulliken partial charge is appended to each atom's
// one-hot element features.
func New(name, baseDir string, extraFeatures bool) *Source {
	return &Source{name: name, baseDir: baseDir, extraFeatures: extraFeatures}
}

// Name implements datasets.Source.
func (s *Source) Name() string { return s.name }

// Download implements datasets.Source.
func (s *Source) Download() error {
	dir, err := datasets.CacheDir(s.baseDir, "qm9")
	if err != nil {
		return err
	}
	return mldata.DownloadAndUntarIfMissing(downloadURL, dir, tarName, path.Join(dir, subDir), "")
}

// Splits implements datasets.Source.
func (s *Source) Splits() (trainDS, validDS, testDS train.Dataset, err error) {
	dir, err := datasets.CacheDir(s.baseDir, "qm9")
	if err != nil {
		return nil, nil, nil, err
	}
	examples, err := ParseDir(path.Join(dir, subDir), numMolecules, s.extraFeatures)
	if err != nil {
		return nil, nil, nil, err
	}
	spec := &graphs.Spec{
		Name:            s.name,
		Task:            graphs.GraphLevel,
		HasEdgeFeatures: true,
		HasNodeToGraph:  true,
		NumGraphs:       1,
	}
	rng := rand.New(rand.NewSource(splitSeed))
	trainIdx, validIdx, testIdx := datasets.SplitIndices(len(examples), trainFraction, validFraction, rng)
	pick := func(indices []int) []*graphs.Example {
		picked := make([]*graphs.Example, len(indices))
		for i, idx := range indices {
			picked[i] = examples[idx]
		}
		return picked
	}
	trainDS = datasets.NewInMemory(s.name+" train", spec, pick(trainIdx), rand.New(rand.NewSource(splitSeed)))
	validDS = datasets.NewInMemory(s.name+" valid", spec, pick(validIdx), nil)
	testDS = datasets.NewInMemory(s.name+" test", spec, pick(testIdx), nil)
	return
}

// ParseDir reads up to limit .xyz files (sorted by name, so the subset is
// stable) from the extracted archive.
func ParseDir(dir string, limit int, extraFeatures bool) ([]*graphs.Example, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %q", dir)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".xyz") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	examples := make([]*graphs.Example, 0, len(names))
	for _, name := range names {
		example, err := ParseFile(path.Join(dir, name), extraFeatures)
		if err != nil {
			return nil, errors.WithMessagef(err, "%s", name)
		}
		examples = append(examples, example)
	}
	klog.V(1).Infof("QM9: %d molecules from %s", len(examples), dir)
	return examples, nil
}

// ParseFile reads one QM9 xyz file: atom count, the properties line
// ("gdb <index> A B C mu alpha ..."), one line per atom with element,
// coordinates and Mulliken charge.
func ParseFile(filePath string, extraFeatures bool) (*graphs.Example, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)

	numAtoms, err := readInt(scanner)
	if err != nil {
		return nil, err
	}
	if !scanner.Scan() {
		return nil, errors.New("missing properties line")
	}
	properties := strings.Fields(scanner.Text())
	if len(properties) < 6 {
		return nil, errors.Errorf("properties line has %d fields", len(properties))
	}
	mu, err := parseFloat(properties[5]) // Dipole moment, the regression target.
	if err != nil {
		return nil, err
	}

	featureDim := NumElements
	if extraFeatures {
		featureDim++
	}
	features := make([]float32, 0, numAtoms*featureDim)
	xs := make([]float64, numAtoms)
	ys := make([]float64, numAtoms)
	zs := make([]float64, numAtoms)
	for atom := range numAtoms {
		if !scanner.Scan() {
			return nil, errors.Errorf("expected %d atoms, file ends at %d", numAtoms, atom)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) != 5 {
			return nil, errors.Errorf("atom line has %d fields, want 5", len(fields))
		}
		elemIdx, found := elementIndex[fields[0]]
		if !found {
			return nil, errors.Errorf("unknown element %q", fields[0])
		}
		if xs[atom], err = parseFloat(fields[1]); err != nil {
			return nil, err
		}
		if ys[atom], err = parseFloat(fields[2]); err != nil {
			return nil, err
		}
		if zs[atom], err = parseFloat(fields[3]); err != nil {
			return nil, err
		}
		oneHot := make([]float32, NumElements)
		oneHot[elemIdx] = 1
		features = append(features, oneHot...)
		if extraFeatures {
			charge, err := parseFloat(fields[4])
			if err != nil {
				return nil, err
			}
			features = append(features, float32(charge))
		}
	}

	sources, targets, distances := cutoffEdges(xs, ys, zs, CutoffAngstrom)
	return &graphs.Example{
		NodeFeatures: tensors.FromFlatDataAndDimensions(features, numAtoms, featureDim),
		EdgeSources:  tensors.FromFlatDataAndDimensions(sources, len(sources)),
		EdgeTargets:  tensors.FromFlatDataAndDimensions(targets, len(targets)),
		EdgeFeatures: tensors.FromFlatDataAndDimensions(distances, len(distances), 1),
		NodeToGraph:  tensors.FromFlatDataAndDimensions(make([]int32, numAtoms), numAtoms),
		Labels:       tensors.FromFlatDataAndDimensions([]float32{float32(mu)}, 1, 1),
	}, nil
}

// cutoffEdges connects every atom pair closer than the cutoff, both
// directions, with the Euclidean distance as edge feature.
func cutoffEdges(xs, ys, zs []float64, cutoff float64) (sources, targets []int32, distances []float32) {
	for u := range xs {
		for v := u + 1; v < len(xs); v++ {
			dx, dy, dz := xs[u]-xs[v], ys[u]-ys[v], zs[u]-zs[v]
			d2 := dx*dx + dy*dy + dz*dz
			if d2 >= cutoff*cutoff {
				continue
			}
			d := float32(math.Sqrt(d2))
			sources = append(sources, int32(u), int32(v))
			targets = append(targets, int32(v), int32(u))
			distances = append(distances, d, d)
		}
	}
	return
}

func readInt(scanner *bufio.Scanner) (int, error) {
	if !scanner.Scan() {
		return 0, errors.New("unexpected end of file")
	}
	v, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return 0, errors.Wrap(err, "failed to parse atom count")
	}
	return v, nil
}

// parseFloat accepts the archive's Mathematica-style "*^" exponent marker
// in addition to plain floats.
func parseFloat(s string) (float64, error) {
	s = strings.ReplaceAll(s, "*^", "e")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse float %q", s)
	}
	return v, nil
}
