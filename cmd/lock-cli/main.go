// Command lock-cli builds and inspects distribution tree artifacts.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"lockvault/distribution"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "create-tree":
		err = runCreateTree(os.Args[2:])
	case "verify-tree":
		err = runVerifyTree(os.Args[2:])
	case "proof":
		err = runProof(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "lock-cli: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: lock-cli <command> [flags]

Commands:
  create-tree   Build a distribution tree artifact from a CSV grant list
  verify-tree   Re-validate a persisted tree artifact
  proof         Export one recipient's schedule and inclusion proof`)
}

func runCreateTree(args []string) error {
	fs := flag.NewFlagSet("create-tree", flag.ExitOnError)
	csvPath := fs.String("csv", "", "Path to the CSV grant list")
	outPath := fs.String("out", "tree.json", "Output path for the tree artifact")
	version := fs.Uint64("version", 1, "Distribution version, part of the pool address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *csvPath == "" {
		return fmt.Errorf("create-tree: -csv is required")
	}
	nodes, err := distribution.ReadCSVFile(*csvPath)
	if err != nil {
		return err
	}
	tree, err := distribution.New(nodes, *version)
	if err != nil {
		return err
	}
	if err := tree.WriteFile(*outPath); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n  merkle root:  %x\n  recipients:   %d\n  total amount: %d\n",
		*outPath, tree.MerkleRoot, tree.MaxEscrow, tree.MaxClaimAmount)
	return nil
}

func runVerifyTree(args []string) error {
	fs := flag.NewFlagSet("verify-tree", flag.ExitOnError)
	treePath := fs.String("tree", "tree.json", "Path to the tree artifact")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tree, err := distribution.LoadFile(*treePath)
	if err != nil {
		return err
	}
	fmt.Printf("ok\n  merkle root:  %x\n  version:      %d\n  recipients:   %d\n  total amount: %d\n",
		tree.MerkleRoot, tree.Version, tree.MaxEscrow, tree.MaxClaimAmount)
	return nil
}

func runProof(args []string) error {
	fs := flag.NewFlagSet("proof", flag.ExitOnError)
	treePath := fs.String("tree", "tree.json", "Path to the tree artifact")
	recipientHex := fs.String("recipient", "", "Recipient address (hex)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := hex.DecodeString(*recipientHex)
	if err != nil || len(raw) != 20 {
		return fmt.Errorf("proof: -recipient must be a 20-byte hex address")
	}
	var recipient [20]byte
	copy(recipient[:], raw)

	tree, err := distribution.LoadFile(*treePath)
	if err != nil {
		return err
	}
	node, ok := tree.Node(recipient)
	if !ok {
		return fmt.Errorf("proof: recipient %x not in tree", recipient)
	}
	proof := make([]string, len(node.Proof))
	for i, sibling := range node.Proof {
		proof[i] = hex.EncodeToString(sibling[:])
	}
	out := map[string]interface{}{
		"merkleRoot": hex.EncodeToString(tree.MerkleRoot[:]),
		"recipient":  hex.EncodeToString(node.Recipient[:]),
		"params": map[string]uint64{
			"vestingStartTime":    node.VestingStartTime,
			"cliffTime":           node.CliffTime,
			"frequency":           node.Frequency,
			"cliffUnlockAmount":   node.CliffUnlockAmount,
			"amountPerPeriod":     node.AmountPerPeriod,
			"numberOfPeriod":      node.NumberOfPeriod,
			"updateRecipientMode": uint64(node.UpdateRecipientMode),
			"cancelMode":          uint64(node.CancelMode),
		},
		"proof": proof,
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
