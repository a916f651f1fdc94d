// Package state persists lockup records and token balances in a key-value
// backend. Storage keys are keccak hashes of a per-record prefix plus the
// record's seed components, mirroring the deterministic address derivation in
// the lockup package, and record payloads are RLP encoded.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"lockvault/native/fees"
	"lockvault/native/lockup"
	"lockvault/native/lockup/safemath"
	"lockvault/storage"
)

// Manager provides the storage and token-transfer collaborator backing the
// lockup engine.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	balancePrefix = []byte("balance:")
	mintedPrefix  = []byte("minted:")
)

func balanceKey(addr [20]byte, token string) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(token)+1+len(addr))
	buf = append(buf, balancePrefix...)
	buf = append(buf, token...)
	buf = append(buf, ':')
	buf = append(buf, addr[:]...)
	return ethcrypto.Keccak256(buf)
}

func mintedKey(token string) []byte {
	buf := make([]byte, 0, len(mintedPrefix)+len(token))
	buf = append(buf, mintedPrefix...)
	buf = append(buf, token...)
	return ethcrypto.Keccak256(buf)
}

// FeeCollectorAddress derives the address accumulating a token's transfer
// fees. Reproducible off-path like every other derivation.
func FeeCollectorAddress(token string) [20]byte {
	sum := ethcrypto.Keccak256([]byte("fee_collector"), []byte(token))
	var addr [20]byte
	copy(addr[:], sum[12:])
	return addr
}

func (m *Manager) loadUint64(key []byte) (uint64, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("state: malformed uint64 value of length %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (m *Manager) writeUint64(key []byte, value uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	return m.db.Put(key, buf[:])
}

// Balance returns the token balance of an address.
func (m *Manager) Balance(addr [20]byte, token string) (uint64, error) {
	return m.loadUint64(balanceKey(addr, token))
}

// Mint credits freshly issued tokens to an address. Used by genesis-style
// setup and tests; the engine itself only transfers.
func (m *Manager) Mint(addr [20]byte, token string, amount uint64) error {
	normalized, err := lockup.NormalizeToken(token)
	if err != nil {
		return err
	}
	balance, err := m.Balance(addr, normalized)
	if err != nil {
		return err
	}
	updated, err := safemath.Add(balance, amount)
	if err != nil {
		return err
	}
	minted, err := m.loadUint64(mintedKey(normalized))
	if err != nil {
		return err
	}
	totalMinted, err := safemath.Add(minted, amount)
	if err != nil {
		return err
	}
	if err := m.writeUint64(balanceKey(addr, normalized), updated); err != nil {
		return err
	}
	return m.writeUint64(mintedKey(normalized), totalMinted)
}

// Transfer debits exactly amount from the sender. If the token carries a
// badge with a transfer fee, the fee is deducted on the way and routed to the
// token's fee collector; the destination receives the remainder. Callers that
// need an exact net arrival compute the fee-inclusive amount first.
func (m *Manager) Transfer(from, to [20]byte, token string, amount uint64) error {
	normalized, err := lockup.NormalizeToken(token)
	if err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	fromBalance, err := m.Balance(from, normalized)
	if err != nil {
		return err
	}
	debited, err := safemath.Sub(fromBalance, amount)
	if err != nil {
		return fmt.Errorf("state: insufficient balance: %w", err)
	}
	fee, err := m.transferFeeAmount(normalized, amount)
	if err != nil {
		return err
	}
	net, err := safemath.Sub(amount, fee)
	if err != nil {
		return err
	}
	toBalance, err := m.Balance(to, normalized)
	if err != nil {
		return err
	}
	credited, err := safemath.Add(toBalance, net)
	if err != nil {
		return err
	}
	if err := m.writeUint64(balanceKey(from, normalized), debited); err != nil {
		return err
	}
	if err := m.writeUint64(balanceKey(to, normalized), credited); err != nil {
		return err
	}
	if fee == 0 {
		return nil
	}
	collector := FeeCollectorAddress(normalized)
	collectorBalance, err := m.Balance(collector, normalized)
	if err != nil {
		return err
	}
	collected, err := safemath.Add(collectorBalance, fee)
	if err != nil {
		return err
	}
	return m.writeUint64(balanceKey(collector, normalized), collected)
}

func (m *Manager) transferFeeAmount(token string, amount uint64) (uint64, error) {
	badge, ok := m.TokenBadgeGet(token)
	if !ok {
		return 0, nil
	}
	fee := fees.TransferFee{BasisPoints: badge.BasisPoints, MaximumFee: badge.MaximumFee}
	return fee.Fee(amount)
}

func storageKey(prefix []byte, seeds ...[]byte) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, prefix...)
	for _, seed := range seeds {
		buf = append(buf, seed...)
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) createRecord(key []byte, value interface{}) error {
	exists, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return lockup.ErrAlreadyExists
	}
	return m.putRecord(key, value)
}

func (m *Manager) putRecord(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) getRecord(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
