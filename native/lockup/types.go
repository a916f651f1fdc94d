package lockup

import (
	"encoding/binary"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lockvault/merkle"
	"lockvault/native/lockup/safemath"
)

// PermissionMode encodes which of the two escrow actors may perform a guarded
// action. The creator occupies bit 0 and the recipient bit 1, so a mode
// authorizes a signer iff the signer's bit is set.
type PermissionMode uint8

const (
	PermissionNeither   PermissionMode = 0
	PermissionCreator   PermissionMode = 1
	PermissionRecipient PermissionMode = 2
	PermissionEither    PermissionMode = 3
)

// Valid reports whether the mode is within the supported range.
func (m PermissionMode) Valid() bool { return m <= PermissionEither }

// Authorizes reports whether the signer may perform the guarded action. All
// mode checks in the engine route through here.
func (m PermissionMode) Authorizes(signer, creator, recipient [20]byte) bool {
	if m&PermissionCreator != 0 && signer == creator {
		return true
	}
	if m&PermissionRecipient != 0 && signer == recipient {
		return true
	}
	return false
}

// ScheduleParams carries the immutable unlock-schedule fields of a vesting
// escrow. They double as the Merkle leaf payload for batch distributions, so
// the byte order in PayloadHash is part of the proof format.
type ScheduleParams struct {
	VestingStartTime    uint64
	CliffTime           uint64
	Frequency           uint64
	CliffUnlockAmount   uint64
	AmountPerPeriod     uint64
	NumberOfPeriod      uint64
	UpdateRecipientMode PermissionMode
	CancelMode          PermissionMode
}

// Validate enforces the creation-time invariants: a non-degenerate frequency,
// a cliff no earlier than the vesting start, and in-range permission modes.
func (p ScheduleParams) Validate() error {
	if p.Frequency == 0 {
		return ErrFrequencyIsZero
	}
	if p.CliffTime < p.VestingStartTime {
		return ErrInvalidVestingStartTime
	}
	if !p.UpdateRecipientMode.Valid() {
		return ErrInvalidUpdateRecipientMode
	}
	if !p.CancelMode.Valid() {
		return ErrInvalidCancelMode
	}
	return nil
}

// TotalDepositAmount returns cliff + perPeriod*periods, the exact amount a
// schedule must be funded with.
func (p ScheduleParams) TotalDepositAmount() (uint64, error) {
	periodic, err := safemath.Mul(p.AmountPerPeriod, p.NumberOfPeriod)
	if err != nil {
		return 0, err
	}
	return safemath.Add(p.CliffUnlockAmount, periodic)
}

// PayloadHash binds the recipient and every schedule field into the Merkle
// leaf preimage: recipient bytes, then each u64 field little-endian, then the
// two mode bytes, in exactly this order.
func (p ScheduleParams) PayloadHash(recipient [20]byte) merkle.Hash {
	buf := make([]byte, 0, len(recipient)+6*8+2)
	buf = append(buf, recipient[:]...)
	for _, v := range []uint64{
		p.VestingStartTime,
		p.CliffTime,
		p.Frequency,
		p.CliffUnlockAmount,
		p.AmountPerPeriod,
		p.NumberOfPeriod,
	} {
		buf = binary.LittleEndian.AppendUint64(buf, v)
	}
	buf = append(buf, byte(p.UpdateRecipientMode), byte(p.CancelMode))
	var out merkle.Hash
	copy(out[:], ethcrypto.Keccak256(buf))
	return out
}

// VestingSchedule is the per-recipient custody record. Tokens equal to the
// total deposit are held in the schedule's vault and released to the
// recipient according to the unlock math in schedule.go.
type VestingSchedule struct {
	ID        [32]byte
	Recipient [20]byte
	Creator   [20]byte
	Token     string
	Base      [32]byte
	ScheduleParams
	TotalClaimedAmount uint64
	CancelledAt        uint64
	CreatedAt          uint64
}

// Clone returns a deep copy callers can mutate safely.
func (s *VestingSchedule) Clone() *VestingSchedule {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Cancelled reports whether the schedule has been cancelled. CancelledAt is
// first-write-wins; zero means active.
func (s *VestingSchedule) Cancelled() bool { return s.CancelledAt != 0 }

// RootEscrow is the shared funding pool for a batch distribution. One Merkle
// root services max_escrow recipients without per-recipient records until a
// recipient materializes or claims.
type RootEscrow struct {
	ID                    [32]byte
	Token                 string
	Creator               [20]byte
	Base                  [32]byte
	Version               uint64
	Root                  merkle.Hash
	MaxClaimAmount        uint64
	MaxEscrow             uint64
	TotalFundedAmount     uint64
	TotalEscrowCreated    uint64
	TotalDistributeAmount uint64
	CreatedAt             uint64
}

// Clone returns a deep copy callers can mutate safely.
func (r *RootEscrow) Clone() *RootEscrow {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// fundAmount caps a funding request at the pool's remaining shortfall and
// accumulates the funded amount.
func (r *RootEscrow) fundAmount(maxAmount uint64) (uint64, error) {
	shortfall, err := safemath.Sub(r.MaxClaimAmount, r.TotalFundedAmount)
	if err != nil {
		return 0, err
	}
	funded := min(shortfall, maxAmount)
	r.TotalFundedAmount, err = safemath.Add(r.TotalFundedAmount, funded)
	if err != nil {
		return 0, err
	}
	return funded, nil
}

// recordNewEscrow accounts for one successfully materialized recipient.
func (r *RootEscrow) recordNewEscrow(totalDeposit uint64) error {
	created, err := safemath.Add(r.TotalEscrowCreated, 1)
	if err != nil {
		return err
	}
	distributed, err := safemath.Add(r.TotalDistributeAmount, totalDeposit)
	if err != nil {
		return err
	}
	r.TotalEscrowCreated = created
	r.TotalDistributeAmount = distributed
	return nil
}

// ClaimStatus is the per-recipient accumulator for the stateless-claim model.
// The schedule itself is never persisted; it is re-supplied and re-verified
// against the pool root on every claim.
type ClaimStatus struct {
	Pool                [32]byte
	Recipient           [20]byte
	TotalClaimedAmount  uint64
	CurrentLockedAmount uint64
	LatestClaimedAmount uint64
}

// Clone returns a deep copy callers can mutate safely.
func (c *ClaimStatus) Clone() *ClaimStatus {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// TokenBadge marks a token symbol as approved for fee-bearing custody and
// carries its transfer-fee schedule. Registration is gated by the admin
// allow-list injected into the engine.
type TokenBadge struct {
	Token       string
	BasisPoints uint16
	MaximumFee  uint64
}

// NormalizeToken canonicalises a token symbol to trimmed uppercase.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" || len(trimmed) > 16 {
		return "", fmt.Errorf("%w: %q", ErrInvalidToken, symbol)
	}
	return trimmed, nil
}
