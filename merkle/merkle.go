// Package merkle builds binary Merkle trees over 32-byte leaf hashes and
// produces inclusion proofs verifiable against the root alone.
//
// Leaf and intermediate hashes are domain separated with distinct prefixes so
// an intermediate hash can never be replayed as a leaf (second-preimage
// hardening). Sibling pairs are hashed in canonical order, the numerically
// smaller hash first, so verification needs no left/right positioning data.
// An odd node at any level carries up to the next level unchanged.
package merkle

import (
	"bytes"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// HashSize is the size of every node hash in bytes.
const HashSize = 32

const (
	leafPrefix         = 0x00
	intermediatePrefix = 0x01
)

var (
	// ErrEmptyTree is returned when a tree is built from zero leaves.
	ErrEmptyTree = errors.New("merkle: empty tree")
	// ErrIndexOutOfRange is returned for proof requests beyond the leaf count.
	ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")
)

// Hash is a 32-byte node hash.
type Hash [HashSize]byte

// Tree holds every level of a built Merkle tree, leaves first.
type Tree struct {
	levels [][]Hash
}

// HashLeaf maps a payload hash into the leaf domain.
func HashLeaf(payload Hash) Hash {
	var out Hash
	copy(out[:], ethcrypto.Keccak256([]byte{leafPrefix}, payload[:]))
	return out
}

func hashIntermediate(a, b Hash) Hash {
	if bytes.Compare(b[:], a[:]) < 0 {
		a, b = b, a
	}
	var out Hash
	copy(out[:], ethcrypto.Keccak256([]byte{intermediatePrefix}, a[:], b[:]))
	return out
}

// NewTree builds a tree over the supplied payload hashes. Each payload is
// first mapped into the leaf domain via HashLeaf.
func NewTree(payloads []Hash) (*Tree, error) {
	if len(payloads) == 0 {
		return nil, ErrEmptyTree
	}
	leaves := make([]Hash, len(payloads))
	for i, payload := range payloads {
		leaves[i] = HashLeaf(payload)
	}
	levels := [][]Hash{leaves}
	for current := leaves; len(current) > 1; {
		next := make([]Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				// odd node, carry up unchanged
				next = append(next, current[i])
				continue
			}
			next = append(next, hashIntermediate(current[i], current[i+1]))
		}
		levels = append(levels, next)
		current = next
	}
	return &Tree{levels: levels}, nil
}

// Root returns the tree's root hash.
func (t *Tree) Root() Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// LeafCount returns the number of leaves the tree was built from.
func (t *Tree) LeafCount() int {
	return len(t.levels[0])
}

// Proof returns the ordered sibling hashes proving inclusion of leaf index i.
func (t *Tree) Proof(i int) ([]Hash, error) {
	if i < 0 || i >= t.LeafCount() {
		return nil, ErrIndexOutOfRange
	}
	proof := make([]Hash, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := i ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		i >>= 1
	}
	return proof, nil
}

// Verify folds the proof over the payload hash and reports whether the result
// matches root. It must stay in lockstep with NewTree's hashing scheme.
func Verify(root Hash, payload Hash, proof []Hash) bool {
	acc := HashLeaf(payload)
	for _, sibling := range proof {
		acc = hashIntermediate(acc, sibling)
	}
	return acc == root
}
