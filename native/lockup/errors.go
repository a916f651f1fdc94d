package lockup

import "errors"

var (
	// ErrMathOverflow wraps checked-arithmetic failures surfaced by engine
	// operations.
	ErrMathOverflow = errors.New("lockup: math overflow")
	// ErrNotPermitted reports a signer the permission mode does not allow.
	ErrNotPermitted = errors.New("lockup: not permitted to do this action")
	// ErrAlreadyCancelled reports a second cancel or a mutation of a
	// cancelled schedule.
	ErrAlreadyCancelled = errors.New("lockup: already cancelled")
	// ErrFrequencyIsZero rejects schedule creation with a zero frequency.
	ErrFrequencyIsZero = errors.New("lockup: frequency is zero")
	// ErrInvalidVestingStartTime rejects a cliff before the vesting start.
	ErrInvalidVestingStartTime = errors.New("lockup: invalid vesting start time")
	// ErrInvalidUpdateRecipientMode rejects an out-of-range recipient mode.
	ErrInvalidUpdateRecipientMode = errors.New("lockup: invalid update recipient mode")
	// ErrInvalidCancelMode rejects an out-of-range cancel mode.
	ErrInvalidCancelMode = errors.New("lockup: invalid cancel mode")
	// ErrInvalidMerkleProof reports a proof that does not bind the claimed
	// schedule to the pool's published root.
	ErrInvalidMerkleProof = errors.New("lockup: invalid merkle proof")
	// ErrAmountIsZero rejects no-op funding transactions.
	ErrAmountIsZero = errors.New("lockup: amount is zero")
	// ErrTimestampZero rejects a cancel at the zero timestamp, which is
	// reserved to mean "active".
	ErrTimestampZero = errors.New("lockup: cancelled timestamp is zero")
	// ErrClaimingNotFinished rejects closing a schedule that still holds
	// unclaimed funds.
	ErrClaimingNotFinished = errors.New("lockup: claiming is not finished")
	// ErrInvalidToken reports an unregistered or malformed token symbol.
	ErrInvalidToken = errors.New("lockup: invalid token")
	// ErrNotFound reports a missing schedule, pool or claim record.
	ErrNotFound = errors.New("lockup: not found")
	// ErrAlreadyExists reports a deterministic-address collision: the record
	// for these seeds has already been created.
	ErrAlreadyExists = errors.New("lockup: already exists")
)
