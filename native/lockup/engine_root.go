package lockup

import (
	"fmt"

	"lockvault/merkle"
	"lockvault/native/lockup/safemath"
)

// CreateRootEscrow publishes a distribution batch: one Merkle root standing in
// for max_escrow individual schedules, with max_claim_amount being the sum of
// their total deposits.
func (e *Engine) CreateRootEscrow(creator [20]byte, token string, base [32]byte, version uint64, root merkle.Hash, maxClaimAmount, maxEscrow uint64) (*RootEscrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	id := RootEscrowAddress(base, normalized, version)
	if _, exists := e.state.RootEscrowGet(id); exists {
		return nil, fmt.Errorf("%w: root escrow %x", ErrAlreadyExists, id)
	}
	pool := &RootEscrow{
		ID:             id,
		Token:          normalized,
		Creator:        creator,
		Base:           base,
		Version:        version,
		Root:           root,
		MaxClaimAmount: maxClaimAmount,
		MaxEscrow:      maxEscrow,
		CreatedAt:      e.now(),
	}
	if err := e.state.RootEscrowCreate(pool); err != nil {
		return nil, err
	}
	e.emit(NewRootCreatedEvent(pool))
	return pool.Clone(), nil
}

// FundRootEscrow tops up the pool from the payer, capped at the remaining
// shortfall. Top-ups are idempotent in aggregate: once the pool holds
// max_claim_amount further requests fund nothing and are rejected as no-ops.
func (e *Engine) FundRootEscrow(id [32]byte, payer [20]byte, maxAmount uint64) (uint64, error) {
	pool, err := e.loadRootEscrow(id)
	if err != nil {
		return 0, err
	}
	funded, err := pool.fundAmount(maxAmount)
	if err != nil {
		return 0, wrapMath(err)
	}
	if funded == 0 {
		return 0, ErrAmountIsZero
	}
	fee, err := e.transferFee(pool.Token)
	if err != nil {
		return 0, err
	}
	gross, err := fee.GrossForNet(funded)
	if err != nil {
		return 0, wrapMath(err)
	}
	if err := e.transfer(payer, VaultAddress(id), pool.Token, gross); err != nil {
		return 0, err
	}
	if err := e.state.RootEscrowPut(pool); err != nil {
		return 0, err
	}
	e.emit(NewRootFundedEvent(pool, funded))
	return funded, nil
}

// MaterializeSchedule creates the recipient's individual vesting schedule,
// funded from the pool, after verifying the Merkle proof binding (recipient,
// params) to the pool's published root. The schedule's base is derived from
// (pool, recipient), so a second attempt for the same recipient collides and
// is rejected instead of double-paying.
func (e *Engine) MaterializeSchedule(poolID [32]byte, recipient [20]byte, params ScheduleParams, proof []merkle.Hash) (*VestingSchedule, error) {
	pool, err := e.loadRootEscrow(poolID)
	if err != nil {
		return nil, err
	}
	if !merkle.Verify(pool.Root, params.PayloadHash(recipient), proof) {
		return nil, ErrInvalidMerkleProof
	}
	totalDeposit, err := params.TotalDepositAmount()
	if err != nil {
		return nil, wrapMath(err)
	}
	fee, err := e.transferFee(pool.Token)
	if err != nil {
		return nil, err
	}
	gross, err := fee.GrossForNet(totalDeposit)
	if err != nil {
		return nil, wrapMath(err)
	}
	base := MaterializedBase(poolID, recipient)
	id := ScheduleAddress(base)
	if _, exists := e.state.ScheduleGet(id); exists {
		return nil, fmt.Errorf("%w: schedule %x", ErrAlreadyExists, id)
	}
	if err := pool.recordNewEscrow(totalDeposit); err != nil {
		return nil, wrapMath(err)
	}
	schedule := &VestingSchedule{
		ID:             id,
		Recipient:      recipient,
		Creator:        pool.Creator,
		Token:          pool.Token,
		Base:           base,
		ScheduleParams: params,
		CreatedAt:      e.now(),
	}
	if err := e.transfer(VaultAddress(poolID), VaultAddress(id), pool.Token, gross); err != nil {
		return nil, err
	}
	if err := e.state.ScheduleCreate(schedule); err != nil {
		return nil, err
	}
	if err := e.state.RootEscrowPut(pool); err != nil {
		return nil, err
	}
	e.emit(NewMaterializedEvent(pool, schedule))
	return schedule.Clone(), nil
}

// ClaimFromRoot is the stateless-claim variant: no schedule record is ever
// materialized. The proof-carried parameters are re-verified against the pool
// root on every claim, and a per-recipient accumulator bounds the payout.
func (e *Engine) ClaimFromRoot(poolID [32]byte, recipient [20]byte, params ScheduleParams, proof []merkle.Hash, maxAmount uint64) (uint64, error) {
	pool, err := e.loadRootEscrow(poolID)
	if err != nil {
		return 0, err
	}
	if !merkle.Verify(pool.Root, params.PayloadHash(recipient), proof) {
		return 0, ErrInvalidMerkleProof
	}
	status, ok := e.state.ClaimStatusGet(poolID, recipient)
	if !ok {
		status = &ClaimStatus{Pool: poolID, Recipient: recipient}
	}
	now := e.now()
	claimable, err := params.claimableAmount(now, status.TotalClaimedAmount)
	if err != nil {
		return 0, wrapMath(err)
	}
	amount := min(claimable, maxAmount)
	totalDeposit, err := params.TotalDepositAmount()
	if err != nil {
		return 0, wrapMath(err)
	}
	totalClaimed, err := safemath.Add(status.TotalClaimedAmount, amount)
	if err != nil {
		return 0, wrapMath(err)
	}
	locked, err := safemath.Sub(totalDeposit, totalClaimed)
	if err != nil {
		return 0, wrapMath(err)
	}
	fee, err := e.transferFee(pool.Token)
	if err != nil {
		return 0, err
	}
	gross, err := fee.GrossForNet(amount)
	if err != nil {
		return 0, wrapMath(err)
	}
	if err := e.transfer(VaultAddress(poolID), recipient, pool.Token, gross); err != nil {
		return 0, err
	}
	status.TotalClaimedAmount = totalClaimed
	status.CurrentLockedAmount = locked
	status.LatestClaimedAmount = amount
	if err := e.state.ClaimStatusPut(status); err != nil {
		return 0, err
	}
	e.emit(NewRootClaimedEvent(pool, status, amount, now))
	return amount, nil
}

// GetRootEscrow returns a copy of the pool record.
func (e *Engine) GetRootEscrow(id [32]byte) (*RootEscrow, error) {
	pool, err := e.loadRootEscrow(id)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// GetClaimStatus returns a copy of the stateless-claim accumulator.
func (e *Engine) GetClaimStatus(poolID [32]byte, recipient [20]byte) (*ClaimStatus, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	status, ok := e.state.ClaimStatusGet(poolID, recipient)
	if !ok {
		return nil, fmt.Errorf("%w: claim status %x/%x", ErrNotFound, poolID, recipient)
	}
	return status.Clone(), nil
}

func (e *Engine) loadRootEscrow(id [32]byte) (*RootEscrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, ok := e.state.RootEscrowGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: root escrow %x", ErrNotFound, id)
	}
	return pool, nil
}
