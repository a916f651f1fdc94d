package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lockvault/merkle"
	"lockvault/native/lockup"
	"lockvault/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func id32(fill byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestMintAndBalance(t *testing.T) {
	m := newTestManager(t)
	alice := addr(0x01)

	balance, err := m.Balance(alice, "NHB")
	require.NoError(t, err)
	require.Zero(t, balance)

	require.NoError(t, m.Mint(alice, "nhb", 500))
	require.NoError(t, m.Mint(alice, "NHB", 250))

	balance, err = m.Balance(alice, "NHB")
	require.NoError(t, err)
	require.Equal(t, uint64(750), balance)

	// Balances are per token.
	balance, err = m.Balance(alice, "ZNHB")
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestTransferWithoutBadge(t *testing.T) {
	m := newTestManager(t)
	alice := addr(0x01)
	bob := addr(0x02)
	require.NoError(t, m.Mint(alice, "NHB", 100))

	require.NoError(t, m.Transfer(alice, bob, "NHB", 60))

	balance, err := m.Balance(alice, "NHB")
	require.NoError(t, err)
	require.Equal(t, uint64(40), balance)
	balance, err = m.Balance(bob, "NHB")
	require.NoError(t, err)
	require.Equal(t, uint64(60), balance)
}

func TestTransferInsufficientBalance(t *testing.T) {
	m := newTestManager(t)
	alice := addr(0x01)
	require.NoError(t, m.Mint(alice, "NHB", 10))
	require.Error(t, m.Transfer(alice, addr(0x02), "NHB", 11))
}

func TestTransferRoutesFeeToCollector(t *testing.T) {
	m := newTestManager(t)
	alice := addr(0x01)
	bob := addr(0x02)
	require.NoError(t, m.Mint(alice, "NHB", 1_000))
	// 2.5% fee capped at 100.
	require.NoError(t, m.TokenBadgePut(&lockup.TokenBadge{Token: "NHB", BasisPoints: 250, MaximumFee: 100}))

	require.NoError(t, m.Transfer(alice, bob, "NHB", 400))

	balance, err := m.Balance(alice, "NHB")
	require.NoError(t, err)
	require.Equal(t, uint64(600), balance, "sender is debited the exact transfer amount")
	balance, err = m.Balance(bob, "NHB")
	require.NoError(t, err)
	require.Equal(t, uint64(390), balance, "receiver gets the amount net of the 10 token fee")
	balance, err = m.Balance(FeeCollectorAddress("NHB"), "NHB")
	require.NoError(t, err)
	require.Equal(t, uint64(10), balance)
}

func TestScheduleRoundTrip(t *testing.T) {
	m := newTestManager(t)
	schedule := &lockup.VestingSchedule{
		ID:        id32(0xA0),
		Recipient: addr(0x02),
		Creator:   addr(0x01),
		Token:     "NHB",
		Base:      id32(0x0B),
		ScheduleParams: lockup.ScheduleParams{
			VestingStartTime:    900,
			CliffTime:           1_000,
			Frequency:           100,
			CliffUnlockAmount:   50,
			AmountPerPeriod:     10,
			NumberOfPeriod:      5,
			UpdateRecipientMode: lockup.PermissionEither,
			CancelMode:          lockup.PermissionCreator,
		},
		TotalClaimedAmount: 25,
		CancelledAt:        0,
		CreatedAt:          777,
	}
	require.NoError(t, m.ScheduleCreate(schedule))

	loaded, ok := m.ScheduleGet(schedule.ID)
	require.True(t, ok)
	require.Equal(t, schedule, loaded)

	// A second create at the same derived address collides.
	require.ErrorIs(t, m.ScheduleCreate(schedule), lockup.ErrAlreadyExists)

	schedule.TotalClaimedAmount = 60
	schedule.CancelledAt = 1_234
	require.NoError(t, m.SchedulePut(schedule))
	loaded, ok = m.ScheduleGet(schedule.ID)
	require.True(t, ok)
	require.Equal(t, uint64(60), loaded.TotalClaimedAmount)
	require.Equal(t, uint64(1_234), loaded.CancelledAt)

	require.NoError(t, m.ScheduleDelete(schedule.ID))
	_, ok = m.ScheduleGet(schedule.ID)
	require.False(t, ok)
}

func TestRootEscrowRoundTrip(t *testing.T) {
	m := newTestManager(t)
	pool := &lockup.RootEscrow{
		ID:             id32(0xB0),
		Token:          "NHB",
		Creator:        addr(0x01),
		Base:           id32(0x0C),
		Version:        3,
		Root:           merkle.Hash(id32(0xFF)),
		MaxClaimAmount: 1_000,
		MaxEscrow:      10,
		CreatedAt:      42,
	}
	require.NoError(t, m.RootEscrowCreate(pool))
	require.ErrorIs(t, m.RootEscrowCreate(pool), lockup.ErrAlreadyExists)

	loaded, ok := m.RootEscrowGet(pool.ID)
	require.True(t, ok)
	require.Equal(t, pool, loaded)

	pool.TotalFundedAmount = 400
	pool.TotalEscrowCreated = 2
	pool.TotalDistributeAmount = 180
	require.NoError(t, m.RootEscrowPut(pool))
	loaded, ok = m.RootEscrowGet(pool.ID)
	require.True(t, ok)
	require.Equal(t, pool, loaded)
}

func TestClaimStatusRoundTrip(t *testing.T) {
	m := newTestManager(t)
	poolID := id32(0xB0)
	recipient := addr(0x05)

	_, ok := m.ClaimStatusGet(poolID, recipient)
	require.False(t, ok)

	status := &lockup.ClaimStatus{
		Pool:                poolID,
		Recipient:           recipient,
		TotalClaimedAmount:  70,
		CurrentLockedAmount: 30,
		LatestClaimedAmount: 20,
	}
	require.NoError(t, m.ClaimStatusPut(status))
	loaded, ok := m.ClaimStatusGet(poolID, recipient)
	require.True(t, ok)
	require.Equal(t, status, loaded)

	// Accumulators are keyed by (pool, recipient).
	_, ok = m.ClaimStatusGet(poolID, addr(0x06))
	require.False(t, ok)
	_, ok = m.ClaimStatusGet(id32(0xB1), recipient)
	require.False(t, ok)
}

func TestTokenBadgeRoundTrip(t *testing.T) {
	m := newTestManager(t)
	badge := &lockup.TokenBadge{Token: "NHB", BasisPoints: 30, MaximumFee: 9}

	_, ok := m.TokenBadgeGet("NHB")
	require.False(t, ok)
	require.NoError(t, m.TokenBadgePut(badge))
	loaded, ok := m.TokenBadgeGet("NHB")
	require.True(t, ok)
	require.Equal(t, badge, loaded)

	require.NoError(t, m.TokenBadgeDelete("NHB"))
	_, ok = m.TokenBadgeGet("NHB")
	require.False(t, ok)
}
