package superpixels

import (
	"compress/gzip"
	"encoding/binary"
	"os"
	"path"
	"testing"

	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testImage is an 8x8 image, which the 4-pixel patches reduce to a 2x2
// superpixel grid.
func testImage(label int32) grayImage {
	return grayImage{size: 8, pixels: make([]float32, 8*8), label: label}
}

func TestFromImageUniform(t *testing.T) {
	example := FromImage(testImage(3), 4)

	assert.Equal(t, 4, example.NumNodes())
	assert.Equal(t, []int{4, NumNodeFeatures}, example.NodeFeatures.Shape().Dimensions)
	assert.Equal(t, []int32{3}, tensors.CopyFlatData[int32](example.Labels))
	assert.Equal(t, []int32{0, 0, 0, 0}, tensors.CopyFlatData[int32](example.NodeToGraph))

	// Zero intensity everywhere: centroids fall back to the patch centers.
	features := tensors.CopyFlatData[float32](example.NodeFeatures)
	center0 := float32(1.5 / 7)
	center1 := float32(5.5 / 7)
	assert.InDeltaSlice(t, []float32{
		0, center0, center0,
		0, center1, center0,
		0, center0, center1,
		0, center1, center1,
	}, features, 1e-6)

	// k is capped at numNodes-1, so the 4 superpixels form a complete graph.
	assert.Equal(t, 12, example.NumEdges())
	assert.Equal(t, []int{12, 1}, example.EdgeFeatures.Shape().Dimensions)
}

func TestFromImageCentroid(t *testing.T) {
	img := testImage(0)
	img.pixels[2*8+1] = 1 // Single bright pixel at (x=1, y=2).
	example := FromImage(img, 4)

	features := tensors.CopyFlatData[float32](example.NodeFeatures)
	assert.InDelta(t, 1.0/16, features[0], 1e-6) // Mean intensity of the patch.
	assert.InDelta(t, 1.0/7, features[1], 1e-6)  // Centroid x.
	assert.InDelta(t, 2.0/7, features[2], 1e-6)  // Centroid y.
}

func TestLoadCIFARBatch(t *testing.T) {
	// Two records: a gray-128 image labeled 7 and a black image labeled 2.
	buf := make([]byte, 2*cifarRecordBytes)
	buf[0] = 7
	for i := 1; i < cifarRecordBytes; i++ {
		buf[i] = 128
	}
	buf[cifarRecordBytes] = 2

	filePath := path.Join(t.TempDir(), "data_batch_1.bin")
	require.NoError(t, os.WriteFile(filePath, buf, 0644))

	images, err := loadCIFARBatch(filePath)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, int32(7), images[0].label)
	assert.Equal(t, int32(2), images[1].label)
	assert.Equal(t, cifarSize, images[0].size)
	require.Len(t, images[0].pixels, cifarSize*cifarSize)
	assert.InDelta(t, 128.0/255, images[0].pixels[0], 1e-6)
	assert.InDelta(t, 0.0, images[1].pixels[0], 1e-6)

	// A trailing partial record is an error, not EOF.
	require.NoError(t, os.WriteFile(filePath, buf[:cifarRecordBytes+10], 0644))
	_, err = loadCIFARBatch(filePath)
	require.Error(t, err)
}

func writeIdxImages(t *testing.T, dir string, images [][]byte) string {
	t.Helper()
	filePath := path.Join(dir, "images-idx3-ubyte.gz")
	f, err := os.Create(filePath)
	require.NoError(t, err)
	w := gzip.NewWriter(f)
	header := []int32{mnistImageMagic, int32(len(images)), mnistSize, mnistSize}
	require.NoError(t, binary.Write(w, binary.BigEndian, header))
	for _, img := range images {
		_, err = w.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return filePath
}

func writeIdxLabels(t *testing.T, dir string, labels []byte) string {
	t.Helper()
	filePath := path.Join(dir, "labels-idx1-ubyte.gz")
	f, err := os.Create(filePath)
	require.NoError(t, err)
	w := gzip.NewWriter(f)
	header := []int32{mnistLabelMagic, int32(len(labels))}
	require.NoError(t, binary.Write(w, binary.BigEndian, header))
	_, err = w.Write(labels)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return filePath
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	img0 := make([]byte, mnistSize*mnistSize)
	img1 := make([]byte, mnistSize*mnistSize)
	img1[0] = 255
	imagesPath := writeIdxImages(t, dir, [][]byte{img0, img1})
	labelsPath := writeIdxLabels(t, dir, []byte{4, 9})

	images, err := loadMNIST(imagesPath, labelsPath)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, int32(4), images[0].label)
	assert.Equal(t, int32(9), images[1].label)
	assert.Equal(t, mnistSize, images[0].size)
	assert.InDelta(t, 0.0, images[0].pixels[0], 1e-6)
	assert.InDelta(t, 1.0, images[1].pixels[0], 1e-6)
}

func TestLoadMNISTMismatches(t *testing.T) {
	dir := t.TempDir()
	img := make([]byte, mnistSize*mnistSize)
	imagesPath := writeIdxImages(t, dir, [][]byte{img})

	// Label count disagrees with the image count.
	labelsPath := writeIdxLabels(t, dir, []byte{1, 2})
	_, err := loadMNIST(imagesPath, labelsPath)
	require.Error(t, err)

	// A label file is not an image file.
	labelsPath = writeIdxLabels(t, dir, []byte{1})
	_, err = loadMNIST(labelsPath, labelsPath)
	require.Error(t, err)
}

func TestSplitsUnknownImageSet(t *testing.T) {
	source := New("SVHN", t.TempDir())
	_, _, _, err := source.Splits()
	require.Error(t, err)
}
