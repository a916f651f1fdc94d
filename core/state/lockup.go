package state

import (
	"fmt"

	"lockvault/merkle"
	"lockvault/native/lockup"
)

var (
	scheduleRecordPrefix    = []byte("lockup/schedule/")
	rootEscrowRecordPrefix  = []byte("lockup/root/")
	claimStatusRecordPrefix = []byte("lockup/claim_status/")
	tokenBadgeRecordPrefix  = []byte("lockup/badge/")
)

func scheduleRecordKey(id [32]byte) []byte {
	return storageKey(scheduleRecordPrefix, id[:])
}

func rootEscrowRecordKey(id [32]byte) []byte {
	return storageKey(rootEscrowRecordPrefix, id[:])
}

func claimStatusRecordKey(pool [32]byte, recipient [20]byte) []byte {
	return storageKey(claimStatusRecordPrefix, pool[:], recipient[:])
}

func tokenBadgeRecordKey(token string) []byte {
	return storageKey(tokenBadgeRecordPrefix, []byte(token))
}

type storedSchedule struct {
	ID                  [32]byte
	Recipient           [20]byte
	Creator             [20]byte
	Token               string
	Base                [32]byte
	VestingStartTime    uint64
	CliffTime           uint64
	Frequency           uint64
	CliffUnlockAmount   uint64
	AmountPerPeriod     uint64
	NumberOfPeriod      uint64
	UpdateRecipientMode uint8
	CancelMode          uint8
	TotalClaimedAmount  uint64
	CancelledAt         uint64
	CreatedAt           uint64
}

func newStoredSchedule(s *lockup.VestingSchedule) *storedSchedule {
	return &storedSchedule{
		ID:                  s.ID,
		Recipient:           s.Recipient,
		Creator:             s.Creator,
		Token:               s.Token,
		Base:                s.Base,
		VestingStartTime:    s.VestingStartTime,
		CliffTime:           s.CliffTime,
		Frequency:           s.Frequency,
		CliffUnlockAmount:   s.CliffUnlockAmount,
		AmountPerPeriod:     s.AmountPerPeriod,
		NumberOfPeriod:      s.NumberOfPeriod,
		UpdateRecipientMode: uint8(s.UpdateRecipientMode),
		CancelMode:          uint8(s.CancelMode),
		TotalClaimedAmount:  s.TotalClaimedAmount,
		CancelledAt:         s.CancelledAt,
		CreatedAt:           s.CreatedAt,
	}
}

func (s *storedSchedule) toSchedule() (*lockup.VestingSchedule, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil schedule record")
	}
	normalized, err := lockup.NormalizeToken(s.Token)
	if err != nil {
		return nil, err
	}
	out := &lockup.VestingSchedule{
		ID:        s.ID,
		Recipient: s.Recipient,
		Creator:   s.Creator,
		Token:     normalized,
		Base:      s.Base,
		ScheduleParams: lockup.ScheduleParams{
			VestingStartTime:    s.VestingStartTime,
			CliffTime:           s.CliffTime,
			Frequency:           s.Frequency,
			CliffUnlockAmount:   s.CliffUnlockAmount,
			AmountPerPeriod:     s.AmountPerPeriod,
			NumberOfPeriod:      s.NumberOfPeriod,
			UpdateRecipientMode: lockup.PermissionMode(s.UpdateRecipientMode),
			CancelMode:          lockup.PermissionMode(s.CancelMode),
		},
		TotalClaimedAmount: s.TotalClaimedAmount,
		CancelledAt:        s.CancelledAt,
		CreatedAt:          s.CreatedAt,
	}
	return out, nil
}

// ScheduleCreate persists a fresh schedule record, failing on a
// deterministic-address collision.
func (m *Manager) ScheduleCreate(s *lockup.VestingSchedule) error {
	return m.createRecord(scheduleRecordKey(s.ID), newStoredSchedule(s))
}

// SchedulePut overwrites an existing schedule record.
func (m *Manager) SchedulePut(s *lockup.VestingSchedule) error {
	return m.putRecord(scheduleRecordKey(s.ID), newStoredSchedule(s))
}

// ScheduleGet loads a schedule record by its derived address.
func (m *Manager) ScheduleGet(id [32]byte) (*lockup.VestingSchedule, bool) {
	var stored storedSchedule
	ok, err := m.getRecord(scheduleRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	schedule, err := stored.toSchedule()
	if err != nil {
		return nil, false
	}
	return schedule, true
}

// ScheduleDelete reclaims a settled schedule's storage.
func (m *Manager) ScheduleDelete(id [32]byte) error {
	return m.db.Delete(scheduleRecordKey(id))
}

type storedRootEscrow struct {
	ID                    [32]byte
	Token                 string
	Creator               [20]byte
	Base                  [32]byte
	Version               uint64
	Root                  [32]byte
	MaxClaimAmount        uint64
	MaxEscrow             uint64
	TotalFundedAmount     uint64
	TotalEscrowCreated    uint64
	TotalDistributeAmount uint64
	CreatedAt             uint64
}

func newStoredRootEscrow(r *lockup.RootEscrow) *storedRootEscrow {
	return &storedRootEscrow{
		ID:                    r.ID,
		Token:                 r.Token,
		Creator:               r.Creator,
		Base:                  r.Base,
		Version:               r.Version,
		Root:                  r.Root,
		MaxClaimAmount:        r.MaxClaimAmount,
		MaxEscrow:             r.MaxEscrow,
		TotalFundedAmount:     r.TotalFundedAmount,
		TotalEscrowCreated:    r.TotalEscrowCreated,
		TotalDistributeAmount: r.TotalDistributeAmount,
		CreatedAt:             r.CreatedAt,
	}
}

func (s *storedRootEscrow) toRootEscrow() (*lockup.RootEscrow, error) {
	if s == nil {
		return nil, fmt.Errorf("state: nil root escrow record")
	}
	normalized, err := lockup.NormalizeToken(s.Token)
	if err != nil {
		return nil, err
	}
	return &lockup.RootEscrow{
		ID:                    s.ID,
		Token:                 normalized,
		Creator:               s.Creator,
		Base:                  s.Base,
		Version:               s.Version,
		Root:                  merkle.Hash(s.Root),
		MaxClaimAmount:        s.MaxClaimAmount,
		MaxEscrow:             s.MaxEscrow,
		TotalFundedAmount:     s.TotalFundedAmount,
		TotalEscrowCreated:    s.TotalEscrowCreated,
		TotalDistributeAmount: s.TotalDistributeAmount,
		CreatedAt:             s.CreatedAt,
	}, nil
}

// RootEscrowCreate persists a fresh pool record, failing on collision.
func (m *Manager) RootEscrowCreate(r *lockup.RootEscrow) error {
	return m.createRecord(rootEscrowRecordKey(r.ID), newStoredRootEscrow(r))
}

// RootEscrowPut overwrites an existing pool record.
func (m *Manager) RootEscrowPut(r *lockup.RootEscrow) error {
	return m.putRecord(rootEscrowRecordKey(r.ID), newStoredRootEscrow(r))
}

// RootEscrowGet loads a pool record by its derived address.
func (m *Manager) RootEscrowGet(id [32]byte) (*lockup.RootEscrow, bool) {
	var stored storedRootEscrow
	ok, err := m.getRecord(rootEscrowRecordKey(id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	pool, err := stored.toRootEscrow()
	if err != nil {
		return nil, false
	}
	return pool, true
}

type storedClaimStatus struct {
	Pool                [32]byte
	Recipient           [20]byte
	TotalClaimedAmount  uint64
	CurrentLockedAmount uint64
	LatestClaimedAmount uint64
}

// ClaimStatusGet loads a stateless-claim accumulator.
func (m *Manager) ClaimStatusGet(pool [32]byte, recipient [20]byte) (*lockup.ClaimStatus, bool) {
	var stored storedClaimStatus
	ok, err := m.getRecord(claimStatusRecordKey(pool, recipient), &stored)
	if err != nil || !ok {
		return nil, false
	}
	return &lockup.ClaimStatus{
		Pool:                stored.Pool,
		Recipient:           stored.Recipient,
		TotalClaimedAmount:  stored.TotalClaimedAmount,
		CurrentLockedAmount: stored.CurrentLockedAmount,
		LatestClaimedAmount: stored.LatestClaimedAmount,
	}, true
}

// ClaimStatusPut persists a stateless-claim accumulator.
func (m *Manager) ClaimStatusPut(c *lockup.ClaimStatus) error {
	return m.putRecord(claimStatusRecordKey(c.Pool, c.Recipient), &storedClaimStatus{
		Pool:                c.Pool,
		Recipient:           c.Recipient,
		TotalClaimedAmount:  c.TotalClaimedAmount,
		CurrentLockedAmount: c.CurrentLockedAmount,
		LatestClaimedAmount: c.LatestClaimedAmount,
	})
}

type storedTokenBadge struct {
	Token       string
	BasisPoints uint16
	MaximumFee  uint64
}

// TokenBadgeGet loads a token's badge if registered.
func (m *Manager) TokenBadgeGet(token string) (*lockup.TokenBadge, bool) {
	var stored storedTokenBadge
	ok, err := m.getRecord(tokenBadgeRecordKey(token), &stored)
	if err != nil || !ok {
		return nil, false
	}
	return &lockup.TokenBadge{
		Token:       stored.Token,
		BasisPoints: stored.BasisPoints,
		MaximumFee:  stored.MaximumFee,
	}, true
}

// TokenBadgePut persists a token badge.
func (m *Manager) TokenBadgePut(b *lockup.TokenBadge) error {
	return m.putRecord(tokenBadgeRecordKey(b.Token), &storedTokenBadge{
		Token:       b.Token,
		BasisPoints: b.BasisPoints,
		MaximumFee:  b.MaximumFee,
	})
}

// TokenBadgeDelete removes a token badge.
func (m *Manager) TokenBadgeDelete(token string) error {
	return m.db.Delete(tokenBadgeRecordKey(token))
}
