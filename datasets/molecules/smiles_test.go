package molecules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func atomSymbols(t *testing.T, mol *Molecule) []string {
	t.Helper()
	symbols := make([]string, len(mol.Atoms))
	for i, idx := range mol.Atoms {
		require.Greater(t, idx, int32(0)) // Index 0 is the padding slot.
		symbols[i] = AtomVocabulary[idx]
	}
	return symbols
}

func undirectedBonds(mol *Molecule) map[[2]int32]float32 {
	bonds := map[[2]int32]float32{}
	for i := range mol.BondSources {
		bonds[[2]int32{mol.BondSources[i], mol.BondTargets[i]}] = mol.BondOrders[i]
	}
	return bonds
}

func TestParseSMILESLinear(t *testing.T) {
	mol, err := ParseSMILES("CCO")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "C", "O"}, atomSymbols(t, mol))

	bonds := undirectedBonds(mol)
	assert.Len(t, bonds, 4) // 2 bonds, both directions.
	assert.Equal(t, float32(singleBond), bonds[[2]int32{0, 1}])
	assert.Equal(t, float32(singleBond), bonds[[2]int32{1, 2}])
	assert.Equal(t, float32(singleBond), bonds[[2]int32{2, 1}])
}

func TestParseSMILESBondOrders(t *testing.T) {
	mol, err := ParseSMILES("C=C")
	require.NoError(t, err)
	assert.Equal(t, float32(doubleBond), undirectedBonds(mol)[[2]int32{0, 1}])

	mol, err = ParseSMILES("C#N")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "N"}, atomSymbols(t, mol))
	assert.Equal(t, float32(tripleBond), undirectedBonds(mol)[[2]int32{0, 1}])
}

func TestParseSMILESBranch(t *testing.T) {
	// Isobutane: central carbon with three methyl branches.
	mol, err := ParseSMILES("CC(C)C")
	require.NoError(t, err)
	require.Len(t, mol.Atoms, 4)

	bonds := undirectedBonds(mol)
	assert.Len(t, bonds, 6)
	assert.Contains(t, bonds, [2]int32{1, 0})
	assert.Contains(t, bonds, [2]int32{1, 2})
	assert.Contains(t, bonds, [2]int32{1, 3})
}

func TestParseSMILESRing(t *testing.T) {
	// Cyclopropane: the ring closure adds the 2-0 bond.
	mol, err := ParseSMILES("C1CC1")
	require.NoError(t, err)
	require.Len(t, mol.Atoms, 3)

	bonds := undirectedBonds(mol)
	assert.Len(t, bonds, 6)
	assert.Contains(t, bonds, [2]int32{2, 0})
}

func TestParseSMILESAromatic(t *testing.T) {
	// Benzene: six aromatic carbons, every bond aromatic.
	mol, err := ParseSMILES("c1ccccc1")
	require.NoError(t, err)
	require.Len(t, mol.Atoms, 6)

	bonds := undirectedBonds(mol)
	assert.Len(t, bonds, 12)
	for bond, order := range bonds {
		assert.Equal(t, float32(aromaticBond), order, "bond %v", bond)
	}
}

func TestParseSMILESAromaticAfterBranch(t *testing.T) {
	// Methyl-substituted aromatic ring: the ring bond following the (C)
	// branch connects two aromatic atoms and keeps the aromatic order.
	mol, err := ParseSMILES("c1cc(C)cc1")
	require.NoError(t, err)
	require.Len(t, mol.Atoms, 6)

	bonds := undirectedBonds(mol)
	assert.Equal(t, float32(singleBond), bonds[[2]int32{2, 3}]) // Ring to methyl.
	assert.Equal(t, float32(aromaticBond), bonds[[2]int32{2, 4}])
	assert.Equal(t, float32(aromaticBond), bonds[[2]int32{4, 5}])
	assert.Equal(t, float32(aromaticBond), bonds[[2]int32{0, 5}]) // Ring closure.
}

func TestParseSMILESBrackets(t *testing.T) {
	mol, err := ParseSMILES("C[NH3+]")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "N"}, atomSymbols(t, mol))

	mol, err = ParseSMILES("C[nH]1cccc1")
	require.NoError(t, err)
	assert.Equal(t, "N", AtomVocabulary[mol.Atoms[1]])

	mol, err = ParseSMILES("CCl")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "Cl"}, atomSymbols(t, mol))
}

func TestParseSMILESFragments(t *testing.T) {
	// The dot separates disconnected fragments: no bond between them.
	mol, err := ParseSMILES("C.C")
	require.NoError(t, err)
	assert.Len(t, mol.Atoms, 2)
	assert.Empty(t, mol.BondSources)
}

func TestParseSMILESErrors(t *testing.T) {
	for _, smiles := range []string{
		"C(C",      // Unbalanced branch.
		"C)C",      // Closing an unopened branch.
		"C1CC",     // Unclosed ring bond.
		"C[NH3+",   // Unterminated bracket.
		"CX",       // Unknown atom.
		"C[Zn]",    // Element outside the vocabulary.
		"%1C",      // Truncated ring label before any atom.
	} {
		_, err := ParseSMILES(smiles)
		assert.Error(t, err, "SMILES %q", smiles)
	}
}

func TestFromSMILES(t *testing.T) {
	example, err := FromSMILES("CCO", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 3, example.NumNodes())
	assert.Equal(t, 4, example.NumEdges())
	assert.Equal(t, []int{3, 1}, example.NodeFeatures.Shape().Dimensions)
	assert.Equal(t, []int{4, 1}, example.EdgeFeatures.Shape().Dimensions)
	assert.Equal(t, []int{1, 1}, example.Labels.Shape().Dimensions)

	_, err = FromSMILES("", 0)
	require.Error(t, err)
}
