package molecules

import (
	"strings"

	"github.com/pkg/errors"
)

// AtomVocabulary lists the element symbols the SMILES reader accepts, in
// feature-index order. Index 0 is reserved so it can double as a padding
// value in embedding tables.
var AtomVocabulary = []string{
	"<pad>", "C", "N", "O", "F", "P", "S", "Cl", "Br", "I", "B", "Si", "Se",
}

// NumAtomTypes is the atom feature cardinality, len(AtomVocabulary).
var NumAtomTypes = len(AtomVocabulary)

var atomIndex = func() map[string]int32 {
	m := make(map[string]int32, len(AtomVocabulary))
	for i, symbol := range AtomVocabulary {
		m[symbol] = int32(i)
	}
	return m
}()

// Molecule is the parsed form of a SMILES string: atom-type indices into
// AtomVocabulary and a directed bond list with both directions present.
type Molecule struct {
	Atoms                    []int32
	BondSources, BondTargets []int32
	BondOrders               []float32
}

const (
	singleBond   = 1.0
	doubleBond   = 2.0
	tripleBond   = 3.0
	aromaticBond = 1.5
)

// ParseSMILES reads the organic subset of SMILES: bare and bracketed atoms,
// bond symbols, branches, ring closures (including %nn) and dot-separated
// fragments. Hydrogen counts, charges and stereo markers inside brackets are
// accepted and dropped, since the atom-type feature only keeps the element.
func ParseSMILES(smiles string) (*Molecule, error) {
	mol := &Molecule{}
	var aromatic []bool // Per-atom, parallel to mol.Atoms.
	prev := int32(-1)
	bondOrder := 0.0 // 0 means "default for the next atom pair".
	var branchStack []int32
	ringOpen := map[string]ringBond{}
	aromaticAt := func(atom int32) bool { return atom >= 0 && aromatic[atom] }

	i := 0
	for i < len(smiles) {
		c := smiles[i]
		switch {
		case c == '(':
			if prev < 0 {
				return nil, errors.New("branch before any atom")
			}
			branchStack = append(branchStack, prev)
			i++
		case c == ')':
			if len(branchStack) == 0 {
				return nil, errors.New("unbalanced ')'")
			}
			prev = branchStack[len(branchStack)-1]
			branchStack = branchStack[:len(branchStack)-1]
			i++
		case c == '-':
			bondOrder = singleBond
			i++
		case c == '=':
			bondOrder = doubleBond
			i++
		case c == '#':
			bondOrder = tripleBond
			i++
		case c == ':':
			bondOrder = aromaticBond
			i++
		case c == '/' || c == '\\':
			// Stereo bonds are single bonds for graph purposes.
			bondOrder = singleBond
			i++
		case c == '.':
			prev = -1
			bondOrder = 0
			i++
		case c >= '0' && c <= '9':
			if err := closeOrOpenRing(mol, ringOpen, string(c), prev, aromaticAt(prev), &bondOrder); err != nil {
				return nil, err
			}
			i++
		case c == '%':
			if i+2 >= len(smiles) {
				return nil, errors.New("truncated %nn ring closure")
			}
			if err := closeOrOpenRing(mol, ringOpen, smiles[i+1:i+3], prev, aromaticAt(prev), &bondOrder); err != nil {
				return nil, err
			}
			i += 3
		case c == '[':
			end := strings.IndexByte(smiles[i:], ']')
			if end < 0 {
				return nil, errors.New("unterminated bracket atom")
			}
			symbol, isAromatic, err := bracketElement(smiles[i+1 : i+end])
			if err != nil {
				return nil, err
			}
			prev = addAtom(mol, &aromatic, symbol, isAromatic, prev, &bondOrder)
			if prev < 0 {
				return nil, errors.Errorf("unsupported atom %q", symbol)
			}
			i += end + 1
		default:
			symbol, isAromatic, width := bareElement(smiles[i:])
			if width == 0 {
				return nil, errors.Errorf("unexpected character %q at %d", c, i)
			}
			prev = addAtom(mol, &aromatic, symbol, isAromatic, prev, &bondOrder)
			if prev < 0 {
				return nil, errors.Errorf("unsupported atom %q", symbol)
			}
			i += width
		}
	}
	if len(branchStack) > 0 {
		return nil, errors.New("unbalanced '('")
	}
	if len(ringOpen) > 0 {
		return nil, errors.Errorf("%d unclosed ring bond(s)", len(ringOpen))
	}
	return mol, nil
}

type ringBond struct {
	atom     int32
	order    float64
	aromatic bool
}

func addAtom(mol *Molecule, aromatic *[]bool, symbol string, atomAromatic bool, prev int32, bondOrder *float64) int32 {
	idx, found := atomIndex[symbol]
	if !found {
		return -1
	}
	atom := int32(len(mol.Atoms))
	mol.Atoms = append(mol.Atoms, idx)
	*aromatic = append(*aromatic, atomAromatic)
	if prev >= 0 {
		order := *bondOrder
		if order == 0 {
			if atomAromatic && (*aromatic)[prev] {
				order = aromaticBond
			} else {
				order = singleBond
			}
		}
		addBond(mol, prev, atom, order)
	}
	*bondOrder = 0
	return atom
}

func addBond(mol *Molecule, a, b int32, order float64) {
	mol.BondSources = append(mol.BondSources, a, b)
	mol.BondTargets = append(mol.BondTargets, b, a)
	mol.BondOrders = append(mol.BondOrders, float32(order), float32(order))
}

func closeOrOpenRing(mol *Molecule, ringOpen map[string]ringBond, label string, prev int32, prevAromatic bool, bondOrder *float64) error {
	if prev < 0 {
		return errors.New("ring bond before any atom")
	}
	open, found := ringOpen[label]
	if !found {
		ringOpen[label] = ringBond{atom: prev, order: *bondOrder, aromatic: prevAromatic}
		*bondOrder = 0
		return nil
	}
	delete(ringOpen, label)
	order := open.order
	if order == 0 {
		order = *bondOrder
	}
	if order == 0 {
		if open.aromatic && prevAromatic {
			order = aromaticBond
		} else {
			order = singleBond
		}
	}
	addBond(mol, open.atom, prev, order)
	*bondOrder = 0
	return nil
}

// bareElement recognizes the organic-subset symbols outside brackets:
// two-letter halogens first, then single letters, lowercase meaning
// aromatic.
func bareElement(s string) (symbol string, aromatic bool, width int) {
	if strings.HasPrefix(s, "Cl") {
		return "Cl", false, 2
	}
	if strings.HasPrefix(s, "Br") {
		return "Br", false, 2
	}
	switch s[0] {
	case 'C', 'N', 'O', 'F', 'P', 'S', 'I', 'B':
		return string(s[0]), false, 1
	case 'c', 'n', 'o', 'p', 's', 'b':
		return strings.ToUpper(string(s[0])), true, 1
	}
	return "", false, 0
}

// bracketElement extracts the element symbol from a bracket-atom body such
// as "NH3+", "nH" or "13CH4", dropping isotopes, hydrogen counts, charges
// and chirality markers.
func bracketElement(body string) (symbol string, aromatic bool, err error) {
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' { // Isotope.
		i++
	}
	if i >= len(body) {
		return "", false, errors.Errorf("bracket atom %q has no element", body)
	}
	c := body[i]
	switch {
	case c >= 'A' && c <= 'Z':
		symbol = string(c)
		if i+1 < len(body) && body[i+1] >= 'a' && body[i+1] <= 'z' {
			two := symbol + string(body[i+1])
			if _, found := atomIndex[two]; found {
				symbol = two
			}
		}
	case c >= 'a' && c <= 'z':
		aromatic = true
		symbol = strings.ToUpper(string(c))
		if c == 's' && i+1 < len(body) && body[i+1] == 'e' {
			symbol = "Se"
		}
	default:
		return "", false, errors.Errorf("bracket atom %q has no element", body)
	}
	return symbol, aromatic, nil
}
