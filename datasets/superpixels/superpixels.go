// Package superpixels builds the MNIST and CIFAR10 superpixel
// graph-classification datasets from the raw image archives: each image is
// reduced to a grid of intensity-weighted superpixel patches, the patches
// become nodes with [intensity, x, y] features, a k-nearest-neighbor graph
// connects them, and the graph-level label is the image class.
package superpixels

import (
	"fmt"
	"math/rand"
	"net/url"
	"path"

	"github.com/gomlx/gnnbench/datasets"
	"github.com/gomlx/gnnbench/graphs"
	mldata "github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

const (
	// NumClasses is the label cardinality of both image sets.
	NumClasses = 10

	// NumNodeFeatures is the per-superpixel feature width: mean intensity
	// and the centroid's normalized x and y.
	NumNodeFeatures = 3

	// NumNeighbors is the k of the superpixel k-nearest-neighbor graph.
	NumNeighbors = 8

	mnistPatch = 4 // 28x28 -> 7x7 superpixels.
	cifarPatch = 4 // 32x32 -> 8x8 superpixels.

	numValidImages   = 5000
	trainShuffleSeed = 71
)

var _ datasets.Source = (*Source)(nil)

// Source is one of the superpixel datasets. Create it with New.
type Source struct {
	name    string
	baseDir string
}

// New creates the source for the given image set, "MNIST" or "CIFAR10",
// caching downloads under baseDir.
func New(name, baseDir string) *Source {
	return &Source{name: name, baseDir: baseDir}
}

// Name implements datasets.Source.
func (s *Source) Name() string { return s.name }

// Download implements datasets.Source.
func (s *Source) Download() error {
	dir, err := datasets.CacheDir(s.baseDir, "superpixels")
	if err != nil {
		return err
	}
	if s.name == "CIFAR10" {
		return mldata.DownloadAndUntarIfMissing(cifarURL, dir, cifarTarName, path.Join(dir, cifarSubDir), "")
	}
	for _, file := range []string{
		mnistTrainImagesFile, mnistTrainLabelsFile, mnistTestImagesFile, mnistTestLabelsFile,
	} {
		fileURL := must.M1(url.JoinPath(mnistURL, file))
		if err := mldata.DownloadIfMissing(fileURL, path.Join(dir, file), ""); err != nil {
			return err
		}
	}
	return nil
}

// Splits implements datasets.Source. The last numValidImages images of the
// training archive become the validation split.
func (s *Source) Splits() (trainDS, validDS, testDS train.Dataset, err error) {
	dir, err := datasets.CacheDir(s.baseDir, "superpixels")
	if err != nil {
		return nil, nil, nil, err
	}
	var trainImages, testImages []grayImage
	patch := mnistPatch
	switch s.name {
	case "MNIST":
		trainImages, err = loadMNIST(path.Join(dir, mnistTrainImagesFile), path.Join(dir, mnistTrainLabelsFile))
		if err == nil {
			testImages, err = loadMNIST(path.Join(dir, mnistTestImagesFile), path.Join(dir, mnistTestLabelsFile))
		}
	case "CIFAR10":
		patch = cifarPatch
		for _, file := range cifarTrainFiles {
			var batch []grayImage
			batch, err = loadCIFARBatch(path.Join(dir, cifarSubDir, file))
			if err != nil {
				break
			}
			trainImages = append(trainImages, batch...)
		}
		if err == nil {
			testImages, err = loadCIFARBatch(path.Join(dir, cifarSubDir, cifarTestFile))
		}
	default:
		err = errors.Errorf("unknown superpixel image set %q", s.name)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if len(trainImages) <= numValidImages {
		return nil, nil, nil, errors.Errorf("%s: only %d training images", s.name, len(trainImages))
	}

	spec := &graphs.Spec{
		Name:            s.name,
		Task:            graphs.GraphLevel,
		HasEdgeFeatures: true,
		HasNodeToGraph:  true,
		NumGraphs:       1,
	}
	numTrain := len(trainImages) - numValidImages
	examples := Convert(s.name, append(trainImages, testImages...), patch)
	trainDS = datasets.NewInMemory(s.name+" train", spec, examples[:numTrain],
		rand.New(rand.NewSource(trainShuffleSeed)))
	validDS = datasets.NewInMemory(s.name+" valid", spec, examples[numTrain:len(trainImages)], nil)
	testDS = datasets.NewInMemory(s.name+" test", spec, examples[len(trainImages):], nil)
	return
}

// Convert reduces every image to its superpixel graph, with a progress bar
// since the conversion of the full archives takes a while.
func Convert(name string, images []grayImage, patch int) []*graphs.Example {
	bar := progressbar.Default(int64(len(images)), fmt.Sprintf("Converting %s to superpixel graphs", name))
	examples := make([]*graphs.Example, len(images))
	for i, img := range images {
		examples[i] = FromImage(img, patch)
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	klog.V(1).Infof("%s: converted %d images, %d superpixels each",
		name, len(images), (images[0].size/patch)*(images[0].size/patch))
	return examples
}

// FromImage reduces one image to its superpixel graph. Each patch's feature
// is its mean intensity plus the intensity-weighted centroid, normalized to
// [0, 1]; a uniform patch falls back to its geometric center.
func FromImage(img grayImage, patch int) *graphs.Example {
	grid := img.size / patch
	numNodes := grid * grid
	features := make([]float32, 0, numNodes*NumNodeFeatures)
	xs := make([]float64, 0, numNodes)
	ys := make([]float64, 0, numNodes)
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			var sum, sumX, sumY float64
			for dy := 0; dy < patch; dy++ {
				for dx := 0; dx < patch; dx++ {
					x, y := gx*patch+dx, gy*patch+dy
					v := float64(img.pixels[y*img.size+x])
					sum += v
					sumX += v * float64(x)
					sumY += v * float64(y)
				}
			}
			cx := float64(gx*patch) + float64(patch-1)/2
			cy := float64(gy*patch) + float64(patch-1)/2
			if sum > 0 {
				cx, cy = sumX/sum, sumY/sum
			}
			cx /= float64(img.size - 1)
			cy /= float64(img.size - 1)
			xs = append(xs, cx)
			ys = append(ys, cy)
			features = append(features,
				float32(sum/float64(patch*patch)), float32(cx), float32(cy))
		}
	}

	sources, targets := graphs.KNNEdges(xs, ys, NumNeighbors)
	distances := make([]float32, len(sources))
	for edge := range sources {
		src, tgt := sources[edge], targets[edge]
		distances[edge] = float32(graphs.EuclideanDistance(xs, ys, int(src), int(tgt)))
	}
	return &graphs.Example{
		NodeFeatures: tensors.FromFlatDataAndDimensions(features, numNodes, NumNodeFeatures),
		EdgeSources:  tensors.FromFlatDataAndDimensions(sources, len(sources)),
		EdgeTargets:  tensors.FromFlatDataAndDimensions(targets, len(targets)),
		EdgeFeatures: tensors.FromFlatDataAndDimensions(distances, len(distances), 1),
		NodeToGraph:  tensors.FromFlatDataAndDimensions(make([]int32, numNodes), numNodes),
		Labels:       tensors.FromFlatDataAndDimensions([]int32{img.label}, 1, 1),
	}
}
