// Package molecules loads the ZINC molecular-regression dataset from its
// SMILES CSV: each molecule becomes a graph whose nodes are atoms (integer
// atom-type features), whose edges are bonds (bond order as edge feature),
// and whose graph-level target is the penalized water-octanol partition
// coefficient, logP - SAS.
package molecules

import (
	"math/rand"
	"os"
	"path"

	"github.com/go-gota/gota/dataframe"
	"github.com/gomlx/gnnbench/datasets"
	"github.com/gomlx/gnnbench/graphs"
	mldata "github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	downloadURL = "https://raw.githubusercontent.com/aspuru-guzik-group/chemical_vae/master/models/zinc_properties/250k_rndm_zinc_drugs_clean_3.csv"
	csvName     = "zinc.csv"

	numTrain = 10000
	numValid = 1000
	numTest  = 1000

	trainShuffleSeed = 17
)

var _ datasets.Source = (*Source)(nil)

// Source is the ZINC dataset. Create it with New.
type Source struct {
	name    string
	baseDir string
}

// New creates the ZINC source, caching downloads under baseDir.
func New(name, baseDir string) *Source {
	return &Source{name: name, baseDir: baseDir}
}

// Name implements datasets.Source.
func (s *Source) Name() string { return s.name }

// Download implements datasets.Source.
func (s *Source) Download() error {
	dir, err := datasets.CacheDir(s.baseDir, "molecules")
	if err != nil {
		return err
	}
	return mldata.DownloadIfMissing(downloadURL, path.Join(dir, csvName), "")
}

// Splits implements datasets.Source. The subset keeps the CSV's row order:
// the first numTrain molecules train, the next numValid validate, the next
// numTest test.
func (s *Source) Splits() (trainDS, validDS, testDS train.Dataset, err error) {
	dir, err := datasets.CacheDir(s.baseDir, "molecules")
	if err != nil {
		return nil, nil, nil, err
	}
	examples, err := ParseCSV(path.Join(dir, csvName), numTrain+numValid+numTest)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(examples) < numTrain+numValid+numTest {
		return nil, nil, nil, errors.Errorf("ZINC: got %d molecules, need %d", len(examples), numTrain+numValid+numTest)
	}
	spec := &graphs.Spec{
		Name:            s.name,
		Task:            graphs.GraphLevel,
		HasEdgeFeatures: true,
		HasNodeToGraph:  true,
		NumGraphs:       1,
	}
	trainDS = datasets.NewInMemory(s.name+" train", spec, examples[:numTrain],
		rand.New(rand.NewSource(trainShuffleSeed)))
	validDS = datasets.NewInMemory(s.name+" valid", spec, examples[numTrain:numTrain+numValid], nil)
	testDS = datasets.NewInMemory(s.name+" test", spec, examples[numTrain+numValid:numTrain+numValid+numTest], nil)
	return
}

// ParseCSV reads up to limit molecules from the ZINC properties CSV
// (columns "smiles", "logP", "qed", "SAS").
func ParseCSV(filePath string, limit int) ([]*graphs.Example, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()
	df := dataframe.ReadCSV(f)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to parse %q", filePath)
	}
	smiles := df.Col("smiles").Records()
	logP := df.Col("logP").Float()
	sas := df.Col("SAS").Float()

	var examples []*graphs.Example
	skipped := 0
	for row := range smiles {
		if len(examples) >= limit {
			break
		}
		example, err := FromSMILES(smiles[row], float32(logP[row]-sas[row]))
		if err != nil {
			// A few rows use chemistry outside the parser's organic subset.
			klog.V(2).Infof("ZINC: skipping row %d (%q): %v", row, smiles[row], err)
			skipped++
			continue
		}
		examples = append(examples, example)
	}
	klog.V(1).Infof("ZINC: %d molecules from %s (%d skipped)", len(examples), filePath, skipped)
	return examples, nil
}

// FromSMILES converts one molecule to an Example with the given regression
// target.
func FromSMILES(smiles string, target float32) (*graphs.Example, error) {
	mol, err := ParseSMILES(smiles)
	if err != nil {
		return nil, errors.WithMessagef(err, "SMILES %q", smiles)
	}
	numNodes := len(mol.Atoms)
	if numNodes == 0 {
		return nil, errors.Errorf("SMILES %q has no atoms", smiles)
	}
	numEdges := len(mol.BondSources)
	return &graphs.Example{
		NodeFeatures: tensors.FromFlatDataAndDimensions(mol.Atoms, numNodes, 1),
		EdgeSources:  tensors.FromFlatDataAndDimensions(mol.BondSources, numEdges),
		EdgeTargets:  tensors.FromFlatDataAndDimensions(mol.BondTargets, numEdges),
		EdgeFeatures: tensors.FromFlatDataAndDimensions(mol.BondOrders, numEdges, 1),
		NodeToGraph:  tensors.FromFlatDataAndDimensions(make([]int32, numNodes), numNodes),
		Labels:       tensors.FromFlatDataAndDimensions([]float32{target}, 1, 1),
	}, nil
}
