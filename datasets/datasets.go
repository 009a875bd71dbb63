// Package datasets holds what the per-family benchmark dataset packages
// share: the Source interface the root dispatch returns, the in-memory
// train.Dataset over loaded graph examples, and small cache-dir and split
// helpers.
package datasets

import (
	"math/rand"
	"os"
	"path"

	mldata "github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/pkg/errors"
)

// Source is a benchmark dataset: one of the family packages (molecules, qm9,
// tsp, sbms, superpixels, citation, tus) configured for a concrete dataset
// name. Download is idempotent and cheap when the cached files already
// exist; Splits loads (or generates) the graphs and returns the three
// conventional splits.
type Source interface {
	// Name of the concrete dataset, e.g. "ZINC" or "PROTEINS_full".
	Name() string

	// Download fetches (or generates) the raw dataset files into the
	// source's cache directory, if not already present.
	Download() error

	// Splits returns the train/validation/test datasets. It requires
	// Download to have succeeded.
	Splits() (trainDS, validDS, testDS train.Dataset, err error)
}

// CacheDir resolves the cache directory for one dataset under baseDir
// (expanding a leading "~") and creates it if needed.
func CacheDir(baseDir, subDir string) (string, error) {
	dir := path.Join(mldata.ReplaceTildeInDir(baseDir), subDir)
	if err := os.MkdirAll(dir, 0777); err != nil && !os.IsExist(err) {
		return "", errors.Wrapf(err, "failed to create dataset cache directory %q", dir)
	}
	return dir, nil
}

// SplitIndices partitions [0, n) into train/validation/test index slices
// with the given fractions, shuffled by the seeded rng so the assignment is
// deterministic per dataset.
func SplitIndices(n int, trainFrac, validFrac float64, rng *rand.Rand) (trainIdx, validIdx, testIdx []int) {
	perm := rng.Perm(n)
	numTrain := int(float64(n) * trainFrac)
	numValid := int(float64(n) * validFrac)
	trainIdx = perm[:numTrain]
	validIdx = perm[numTrain : numTrain+numValid]
	testIdx = perm[numTrain+numValid:]
	return
}
