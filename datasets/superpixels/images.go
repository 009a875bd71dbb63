package superpixels

import (
	"compress/gzip"
	"encoding/binary"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// grayImage is one image decoded to float32 intensities in [0, 1],
// row-major.
type grayImage struct {
	size   int
	pixels []float32
	label  int32
}

const (
	mnistURL             = "https://storage.googleapis.com/cvdf-datasets/mnist"
	mnistTrainImagesFile = "train-images-idx3-ubyte.gz"
	mnistTrainLabelsFile = "train-labels-idx1-ubyte.gz"
	mnistTestImagesFile  = "t10k-images-idx3-ubyte.gz"
	mnistTestLabelsFile  = "t10k-labels-idx1-ubyte.gz"
	mnistSize            = 28

	mnistImageMagic = 0x00000803
	mnistLabelMagic = 0x00000801
)

const (
	cifarURL     = "https://www.cs.toronto.edu/~kriz/cifar-10-binary.tar.gz"
	cifarTarName = "cifar-10-binary.tar.gz"
	cifarSubDir  = "cifar-10-batches-bin"
	cifarSize    = 32

	cifarPlaneBytes  = cifarSize * cifarSize
	cifarRecordBytes = 1 + 3*cifarPlaneBytes
)

var cifarTrainFiles = []string{
	"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin",
	"data_batch_4.bin", "data_batch_5.bin",
}

const cifarTestFile = "test_batch.bin"

// loadMNIST reads one gzipped idx image file and its matching idx label
// file.
func loadMNIST(imagesPath, labelsPath string) ([]grayImage, error) {
	labels, err := loadMNISTLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(imagesPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", imagesPath)
	}
	defer func() { _ = f.Close() }()
	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decompress %q", imagesPath)
	}
	defer func() { _ = reader.Close() }()

	var header struct{ Magic, NumImages, Height, Width int32 }
	if err := binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "failed to read idx header of %q", imagesPath)
	}
	if header.Magic != mnistImageMagic || header.Width != mnistSize || header.Height != mnistSize {
		return nil, errors.Errorf("%q is not an MNIST idx3 image file", imagesPath)
	}
	if int(header.NumImages) != len(labels) {
		return nil, errors.Errorf("%d images but %d labels", header.NumImages, len(labels))
	}

	images := make([]grayImage, header.NumImages)
	raw := make([]byte, mnistSize*mnistSize)
	for i := range images {
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, errors.Wrapf(err, "failed to read image %d of %q", i, imagesPath)
		}
		pixels := make([]float32, len(raw))
		for p, v := range raw {
			pixels[p] = float32(v) / 255
		}
		images[i] = grayImage{size: mnistSize, pixels: pixels, label: labels[i]}
	}
	return images, nil
}

func loadMNISTLabels(labelsPath string) ([]int32, error) {
	f, err := os.Open(labelsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", labelsPath)
	}
	defer func() { _ = f.Close() }()
	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decompress %q", labelsPath)
	}
	defer func() { _ = reader.Close() }()

	var header struct{ Magic, NumLabels int32 }
	if err := binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "failed to read idx header of %q", labelsPath)
	}
	if header.Magic != mnistLabelMagic {
		return nil, errors.Errorf("%q is not an MNIST idx1 label file", labelsPath)
	}
	raw := make([]byte, header.NumLabels)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return nil, errors.Wrapf(err, "failed to read labels of %q", labelsPath)
	}
	labels := make([]int32, len(raw))
	for i, v := range raw {
		labels[i] = int32(v)
	}
	return labels, nil
}

// loadCIFARBatch reads one CIFAR-10 binary batch: fixed-size records of a
// label byte followed by the three planar color channels. Images are
// converted to grayscale intensities.
func loadCIFARBatch(filePath string) ([]grayImage, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %q", filePath)
	}
	defer func() { _ = f.Close() }()

	var images []grayImage
	record := make([]byte, cifarRecordBytes)
	for {
		_, err := io.ReadFull(f, record)
		if err == io.EOF {
			return images, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read record %d of %q", len(images), filePath)
		}
		images = append(images, grayImage{
			size:   cifarSize,
			pixels: cifarToGray(record[1:]),
			label:  int32(record[0]),
		})
	}
}

func cifarToGray(planes []byte) []float32 {
	rgba := image.NewNRGBA(image.Rect(0, 0, cifarSize, cifarSize))
	for y := 0; y < cifarSize; y++ {
		for x := 0; x < cifarSize; x++ {
			p := y*cifarSize + x
			rgba.SetNRGBA(x, y, color.NRGBA{
				R: planes[p],
				G: planes[cifarPlaneBytes+p],
				B: planes[2*cifarPlaneBytes+p],
				A: 255,
			})
		}
	}
	gray := imaging.Grayscale(rgba)
	pixels := make([]float32, cifarSize*cifarSize)
	for y := 0; y < cifarSize; y++ {
		for x := 0; x < cifarSize; x++ {
			pixels[y*cifarSize+x] = float32(gray.NRGBAAt(x, y).R) / 255
		}
	}
	return pixels
}
