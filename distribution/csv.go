package distribution

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"lockvault/native/lockup"
)

var csvHeader = []string{
	"recipient",
	"vesting_start_time",
	"cliff_time",
	"frequency",
	"cliff_unlock_amount",
	"amount_per_period",
	"number_of_period",
	"update_recipient_mode",
	"cancel_mode",
}

// ReadCSV parses a grant list from CSV. The first row must be the canonical
// header; every following row is one grant with a hex recipient address.
func ReadCSV(r io.Reader) ([]TreeNode, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("distribution: read csv header: %w", err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("distribution: expected %d csv columns, got %d", len(csvHeader), len(header))
	}
	for i, want := range csvHeader {
		if header[i] != want {
			return nil, fmt.Errorf("distribution: csv column %d: expected %q, got %q", i, want, header[i])
		}
	}
	var nodes []TreeNode
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("distribution: read csv line %d: %w", line, err)
		}
		node, err := parseCSVRecord(record)
		if err != nil {
			return nil, fmt.Errorf("distribution: csv line %d: %w", line, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ReadCSVFile parses a grant list from a CSV file on disk.
func ReadCSVFile(path string) ([]TreeNode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func parseCSVRecord(record []string) (TreeNode, error) {
	recipient, err := decodeAddress(record[0])
	if err != nil {
		return TreeNode{}, fmt.Errorf("recipient: %w", err)
	}
	fields := make([]uint64, 6)
	for i := range fields {
		fields[i], err = strconv.ParseUint(record[i+1], 10, 64)
		if err != nil {
			return TreeNode{}, fmt.Errorf("%s: %w", csvHeader[i+1], err)
		}
	}
	updateMode, err := strconv.ParseUint(record[7], 10, 8)
	if err != nil {
		return TreeNode{}, fmt.Errorf("update_recipient_mode: %w", err)
	}
	cancelMode, err := strconv.ParseUint(record[8], 10, 8)
	if err != nil {
		return TreeNode{}, fmt.Errorf("cancel_mode: %w", err)
	}
	node := TreeNode{
		Recipient: recipient,
		ScheduleParams: lockup.ScheduleParams{
			VestingStartTime:    fields[0],
			CliffTime:           fields[1],
			Frequency:           fields[2],
			CliffUnlockAmount:   fields[3],
			AmountPerPeriod:     fields[4],
			NumberOfPeriod:      fields[5],
			UpdateRecipientMode: lockup.PermissionMode(updateMode),
			CancelMode:          lockup.PermissionMode(cancelMode),
		},
	}
	if err := node.Validate(); err != nil {
		return TreeNode{}, err
	}
	return node, nil
}
