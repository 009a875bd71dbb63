package datasets

import (
	"io"
	"math/rand"
	"path"
	"testing"

	"github.com/gomlx/gnnbench/graphs"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheDir(t *testing.T) {
	base := t.TempDir()
	dir, err := CacheDir(base, "family")
	require.NoError(t, err)
	assert.Equal(t, path.Join(base, "family"), dir)

	// Idempotent.
	again, err := CacheDir(base, "family")
	require.NoError(t, err)
	assert.Equal(t, dir, again)
}

func TestSplitIndices(t *testing.T) {
	trainIdx, validIdx, testIdx := SplitIndices(100, 0.8, 0.1, rand.New(rand.NewSource(42)))
	assert.Len(t, trainIdx, 80)
	assert.Len(t, validIdx, 10)
	assert.Len(t, testIdx, 10)

	seen := map[int]bool{}
	for _, idx := range append(append(append([]int{}, trainIdx...), validIdx...), testIdx...) {
		assert.False(t, seen[idx])
		seen[idx] = true
	}
	assert.Len(t, seen, 100)

	// Same seed, same assignment.
	trainAgain, _, _ := SplitIndices(100, 0.8, 0.1, rand.New(rand.NewSource(42)))
	assert.Equal(t, trainIdx, trainAgain)
}

func testExample(label int32) *graphs.Example {
	return &graphs.Example{
		NodeFeatures: tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2),
		EdgeSources:  tensors.FromFlatDataAndDimensions([]int32{0, 1}, 2),
		EdgeTargets:  tensors.FromFlatDataAndDimensions([]int32{1, 0}, 2),
		Labels:       tensors.FromFlatDataAndDimensions([]int32{label}, 1, 1),
	}
}

func TestInMemory(t *testing.T) {
	spec := &graphs.Spec{Name: "test", Task: graphs.GraphLevel, NumGraphs: 1}
	examples := []*graphs.Example{testExample(0), testExample(1), testExample(2)}
	ds := NewInMemory("test train", spec, examples, nil)

	assert.Equal(t, "test train", ds.Name())
	assert.Equal(t, 3, ds.NumExamples())
	assert.Equal(t, 2, ds.NodeFeatureDim())

	for i := 0; i < 3; i++ {
		gotSpec, inputs, labels, err := ds.Yield()
		require.NoError(t, err)
		assert.Same(t, spec, gotSpec)
		require.Len(t, inputs, 3) // No optional tensors on these examples.
		require.Len(t, labels, 1)
		assert.Equal(t, int32(i), tensors.CopyFlatData[int32](labels[0])[0])
	}
	_, _, _, err := ds.Yield()
	assert.Equal(t, io.EOF, err)

	ds.Reset()
	_, _, _, err = ds.Yield()
	require.NoError(t, err)
}

func TestInMemoryShuffles(t *testing.T) {
	spec := &graphs.Spec{Name: "test", Task: graphs.GraphLevel, NumGraphs: 1}
	var examples []*graphs.Example
	for i := range 32 {
		examples = append(examples, testExample(int32(i)))
	}
	ds := NewInMemory("test train", spec, examples, rand.New(rand.NewSource(1)))

	epoch := func() []int32 {
		var order []int32
		for {
			_, _, labels, err := ds.Yield()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			order = append(order, tensors.CopyFlatData[int32](labels[0])[0])
		}
		ds.Reset()
		return order
	}
	first, second := epoch(), epoch()
	assert.Len(t, first, 32)
	assert.NotEqual(t, first, second)
	assert.ElementsMatch(t, first, second)
}

func TestInMemoryYieldsMask(t *testing.T) {
	spec := &graphs.Spec{Name: "test", Task: graphs.NodeLevel, NumGraphs: 1}
	example := testExample(0)
	example.Mask = tensors.FromFlatDataAndDimensions([]bool{true, false}, 2)
	ds := NewInMemory("test", spec, []*graphs.Example{example}, nil)

	_, _, labels, err := ds.Yield()
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Same(t, example.Mask, labels[1])
}
