package mailbox

import (
	"github.com/ethereum/go-ethereum/crypto"
)

// TreeDepth is the fixed height of the dispatch accumulator.
const TreeDepth = 32

// MaxLeaves is the insert capacity of a depth-32 tree.
const MaxLeaves = 1<<TreeDepth - 1

// Tree is the append-only merkle accumulator over dispatched message ids.
// Only the current branch and leaf count are stored; the root is derived.
// Node hashing is keccak256 so remote verifiers reproduce the same roots.
type Tree struct {
	Branch [TreeDepth][32]byte
	Count  uint32
}

var zeroHashes [TreeDepth][32]byte

func init() {
	// zeroHashes[i] is the root of an empty subtree of height i.
	var node [32]byte
	for i := 1; i < TreeDepth; i++ {
		node = hashPair(node, node)
		zeroHashes[i] = node
	}
}

func hashPair(left, right [32]byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(left[:], right[:]))
	return out
}

// Insert appends leaf at index Count.
func (t *Tree) Insert(leaf [32]byte) error {
	if t.Count >= MaxLeaves {
		return mbxerr(MBX_ERR_TREE_FULL, "")
	}
	t.Count++
	size := t.Count
	node := leaf
	for i := 0; i < TreeDepth; i++ {
		if size&1 == 1 {
			t.Branch[i] = node
			return nil
		}
		node = hashPair(t.Branch[i], node)
		size >>= 1
	}
	// size always has a set bit within TreeDepth iterations given the
	// capacity check above.
	panic("merkle: insert fell through")
}

// Root folds the stored branch against empty-subtree hashes.
func (t *Tree) Root() [32]byte {
	index := t.Count
	var current [32]byte
	for i := 0; i < TreeDepth; i++ {
		if (index>>i)&1 == 1 {
			current = hashPair(t.Branch[i], current)
		} else {
			current = hashPair(current, zeroHashes[i])
		}
	}
	return current
}
