// Package distribution builds the off-path artifact binding a batch of
// (recipient, schedule) grants to one compact Merkle root. Operators build a
// tree from a grant list, publish the root via a root escrow, and hand each
// recipient the proof attached to their node.
package distribution

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"lockvault/merkle"
	"lockvault/native/lockup"
	"lockvault/native/lockup/safemath"
)

// MaxNodes bounds the tree at height 32.
const MaxNodes = 1<<32 - 1

var (
	// ErrNoNodes rejects building a tree from an empty grant list.
	ErrNoNodes = errors.New("distribution: no tree nodes")
	// ErrDuplicateRecipient rejects two grants for the same recipient;
	// duplicates are a hard error, never a merge.
	ErrDuplicateRecipient = errors.New("distribution: duplicate recipient")
	// ErrValidation reports a structural invariant violation detected during
	// the self-check.
	ErrValidation = errors.New("distribution: validation failed")
)

// TreeNode is one recipient's grant plus, once the tree is built, the proof
// binding it to the root.
type TreeNode struct {
	Recipient [20]byte
	lockup.ScheduleParams
	Proof []merkle.Hash
}

// TotalAmount returns the node's total deposit.
func (n TreeNode) TotalAmount() (uint64, error) {
	return n.TotalDepositAmount()
}

// PayloadHash returns the node's Merkle leaf preimage hash.
func (n TreeNode) PayloadHash() merkle.Hash {
	return n.ScheduleParams.PayloadHash(n.Recipient)
}

// Tree is the persisted distribution artifact.
type Tree struct {
	MerkleRoot     merkle.Hash
	Version        uint64
	MaxClaimAmount uint64
	MaxEscrow      uint64
	TreeNodes      []TreeNode
}

// New builds and validates a distribution tree over the supplied grants,
// attaching an inclusion proof to every node.
func New(nodes []TreeNode, version uint64) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	seen := make(map[[20]byte]struct{}, len(nodes))
	payloads := make([]merkle.Hash, len(nodes))
	for i, node := range nodes {
		if _, dup := seen[node.Recipient]; dup {
			return nil, fmt.Errorf("%w: %x", ErrDuplicateRecipient, node.Recipient)
		}
		seen[node.Recipient] = struct{}{}
		payloads[i] = node.PayloadHash()
	}
	built, err := merkle.NewTree(payloads)
	if err != nil {
		return nil, err
	}
	out := make([]TreeNode, len(nodes))
	copy(out, nodes)
	var maxClaim uint64
	for i := range out {
		proof, err := built.Proof(i)
		if err != nil {
			return nil, err
		}
		out[i].Proof = proof
		total, err := out[i].TotalAmount()
		if err != nil {
			return nil, err
		}
		maxClaim, err = safemath.Add(maxClaim, total)
		if err != nil {
			return nil, err
		}
	}
	tree := &Tree{
		MerkleRoot:     built.Root(),
		Version:        version,
		MaxClaimAmount: maxClaim,
		MaxEscrow:      uint64(len(out)),
		TreeNodes:      out,
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

// Validate re-checks every structural invariant: node count bound and
// consistency, aggregate amount consistency, no duplicate recipients, and
// that rebuilding the tree from the persisted payloads reproduces the
// persisted root with every proof verifying. Run before publishing and after
// loading a persisted artifact.
func (t *Tree) Validate() error {
	if t.MaxEscrow > MaxNodes {
		return fmt.Errorf("%w: %d nodes exceed 2^32-1", ErrValidation, t.MaxEscrow)
	}
	if uint64(len(t.TreeNodes)) != t.MaxEscrow {
		return fmt.Errorf("%w: %d tree nodes, declared max escrow %d", ErrValidation, len(t.TreeNodes), t.MaxEscrow)
	}
	seen := make(map[[20]byte]struct{}, len(t.TreeNodes))
	var maxClaim uint64
	for _, node := range t.TreeNodes {
		if _, dup := seen[node.Recipient]; dup {
			return fmt.Errorf("%w: %x", ErrDuplicateRecipient, node.Recipient)
		}
		seen[node.Recipient] = struct{}{}
		total, err := node.TotalAmount()
		if err != nil {
			return err
		}
		maxClaim, err = safemath.Add(maxClaim, total)
		if err != nil {
			return err
		}
	}
	if maxClaim != t.MaxClaimAmount {
		return fmt.Errorf("%w: node amounts sum to %d, declared max claim %d", ErrValidation, maxClaim, t.MaxClaimAmount)
	}
	payloads := make([]merkle.Hash, len(t.TreeNodes))
	for i, node := range t.TreeNodes {
		payloads[i] = node.PayloadHash()
	}
	rebuilt, err := merkle.NewTree(payloads)
	if err != nil {
		return err
	}
	if rebuilt.Root() != t.MerkleRoot {
		return fmt.Errorf("%w: rebuilt root does not match persisted root", ErrValidation)
	}
	for i, node := range t.TreeNodes {
		if !merkle.Verify(t.MerkleRoot, payloads[i], node.Proof) {
			return fmt.Errorf("%w: proof for %x does not verify", ErrValidation, node.Recipient)
		}
	}
	return nil
}

// Node returns the tree node for a recipient.
func (t *Tree) Node(recipient [20]byte) (TreeNode, bool) {
	for _, node := range t.TreeNodes {
		if node.Recipient == recipient {
			return node, true
		}
	}
	return TreeNode{}, false
}

type treeNodeJSON struct {
	Recipient           string   `json:"recipient"`
	VestingStartTime    uint64   `json:"vestingStartTime"`
	CliffTime           uint64   `json:"cliffTime"`
	Frequency           uint64   `json:"frequency"`
	CliffUnlockAmount   uint64   `json:"cliffUnlockAmount"`
	AmountPerPeriod     uint64   `json:"amountPerPeriod"`
	NumberOfPeriod      uint64   `json:"numberOfPeriod"`
	UpdateRecipientMode uint8    `json:"updateRecipientMode"`
	CancelMode          uint8    `json:"cancelMode"`
	Proof               []string `json:"proof"`
}

type treeJSON struct {
	MerkleRoot     string         `json:"merkleRoot"`
	Version        uint64         `json:"version"`
	MaxClaimAmount uint64         `json:"maxClaimAmount"`
	MaxEscrow      uint64         `json:"maxEscrow"`
	TreeNodes      []treeNodeJSON `json:"treeNodes"`
}

// MarshalJSON implements json.Marshaler with hex-encoded hashes.
func (t *Tree) MarshalJSON() ([]byte, error) {
	doc := treeJSON{
		MerkleRoot:     hex.EncodeToString(t.MerkleRoot[:]),
		Version:        t.Version,
		MaxClaimAmount: t.MaxClaimAmount,
		MaxEscrow:      t.MaxEscrow,
		TreeNodes:      make([]treeNodeJSON, len(t.TreeNodes)),
	}
	for i, node := range t.TreeNodes {
		proof := make([]string, len(node.Proof))
		for j, sibling := range node.Proof {
			proof[j] = hex.EncodeToString(sibling[:])
		}
		doc.TreeNodes[i] = treeNodeJSON{
			Recipient:           hex.EncodeToString(node.Recipient[:]),
			VestingStartTime:    node.VestingStartTime,
			CliffTime:           node.CliffTime,
			Frequency:           node.Frequency,
			CliffUnlockAmount:   node.CliffUnlockAmount,
			AmountPerPeriod:     node.AmountPerPeriod,
			NumberOfPeriod:      node.NumberOfPeriod,
			UpdateRecipientMode: uint8(node.UpdateRecipientMode),
			CancelMode:          uint8(node.CancelMode),
			Proof:               proof,
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var doc treeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	root, err := decodeHash(doc.MerkleRoot)
	if err != nil {
		return fmt.Errorf("distribution: malformed merkle root: %w", err)
	}
	nodes := make([]TreeNode, len(doc.TreeNodes))
	for i, raw := range doc.TreeNodes {
		recipient, err := decodeAddress(raw.Recipient)
		if err != nil {
			return fmt.Errorf("distribution: malformed recipient %q: %w", raw.Recipient, err)
		}
		proof := make([]merkle.Hash, len(raw.Proof))
		for j, sibling := range raw.Proof {
			proof[j], err = decodeHash(sibling)
			if err != nil {
				return fmt.Errorf("distribution: malformed proof entry: %w", err)
			}
		}
		nodes[i] = TreeNode{
			Recipient: recipient,
			ScheduleParams: lockup.ScheduleParams{
				VestingStartTime:    raw.VestingStartTime,
				CliffTime:           raw.CliffTime,
				Frequency:           raw.Frequency,
				CliffUnlockAmount:   raw.CliffUnlockAmount,
				AmountPerPeriod:     raw.AmountPerPeriod,
				NumberOfPeriod:      raw.NumberOfPeriod,
				UpdateRecipientMode: lockup.PermissionMode(raw.UpdateRecipientMode),
				CancelMode:          lockup.PermissionMode(raw.CancelMode),
			},
			Proof: proof,
		}
	}
	t.MerkleRoot = root
	t.Version = doc.Version
	t.MaxClaimAmount = doc.MaxClaimAmount
	t.MaxEscrow = doc.MaxEscrow
	t.TreeNodes = nodes
	return nil
}

// WriteFile persists the tree as JSON.
func (t *Tree) WriteFile(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadFile reads a persisted tree and re-validates it before returning.
func LoadFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tree := new(Tree)
	if err := json.Unmarshal(data, tree); err != nil {
		return nil, err
	}
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	return tree, nil
}

func decodeHash(s string) (merkle.Hash, error) {
	var out merkle.Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func decodeAddress(s string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
