package lockup

import (
	"errors"
	"fmt"
	"time"

	"lockvault/core/events"
	"lockvault/core/types"
	"lockvault/native/fees"
	"lockvault/native/lockup/safemath"
)

var (
	errNilState = errors.New("lockup engine: state not configured")
)

// engineState is the narrow storage and token-transfer contract the engine
// requires. Each operation executes as one serialized transaction against the
// records it touches; there is no concurrent in-process mutation of a record.
type engineState interface {
	ScheduleCreate(*VestingSchedule) error
	SchedulePut(*VestingSchedule) error
	ScheduleGet(id [32]byte) (*VestingSchedule, bool)
	ScheduleDelete(id [32]byte) error

	RootEscrowCreate(*RootEscrow) error
	RootEscrowPut(*RootEscrow) error
	RootEscrowGet(id [32]byte) (*RootEscrow, bool)

	ClaimStatusGet(pool [32]byte, recipient [20]byte) (*ClaimStatus, bool)
	ClaimStatusPut(*ClaimStatus) error

	TokenBadgeGet(token string) (*TokenBadge, bool)
	TokenBadgePut(*TokenBadge) error
	TokenBadgeDelete(token string) error

	// Balance and Transfer move exact amounts; the engine computes
	// fee-inclusive amounts before calling Transfer and never relies on the
	// collaborator to adjust them.
	Balance(addr [20]byte, token string) (uint64, error)
	Transfer(from, to [20]byte, token string, amount uint64) error
}

type lockupEvent struct {
	evt *types.Event
}

func (e lockupEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lockupEvent) Event() *types.Event { return e.evt }

// Engine wires the lockup business logic with external state, the event
// emitter, and the admin allow-list for token badge registration.
type Engine struct {
	state   engineState
	emitter events.Emitter
	admins  map[[20]byte]struct{}
	nowFn   func() uint64
}

// NewEngine creates a lockup engine with a no-op emitter and an empty admin
// set.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		admins:  make(map[[20]byte]struct{}),
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAdmins replaces the badge-registration allow-list. The list is injected
// configuration, never compiled in.
func (e *Engine) SetAdmins(admins [][20]byte) {
	set := make(map[[20]byte]struct{}, len(admins))
	for _, admin := range admins {
		set[admin] = struct{}{}
	}
	e.admins = set
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(lockupEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return e.nowFn()
}

// transferFee resolves the transfer-fee schedule for a token from the badge
// registry. Tokens without a badge charge no fee.
func (e *Engine) transferFee(token string) (fees.TransferFee, error) {
	if e == nil || e.state == nil {
		return fees.TransferFee{}, errNilState
	}
	badge, ok := e.state.TokenBadgeGet(token)
	if !ok {
		return fees.TransferFee{}, nil
	}
	fee := fees.TransferFee{BasisPoints: badge.BasisPoints, MaximumFee: badge.MaximumFee}
	if err := fee.Validate(); err != nil {
		return fees.TransferFee{}, err
	}
	return fee, nil
}

// transfer moves amount between accounts, skipping the call entirely for a
// zero amount so empty settlements are a legal no-op instead of an error.
func (e *Engine) transfer(from, to [20]byte, token string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return e.state.Transfer(from, to, token, amount)
}

func (e *Engine) loadSchedule(id [32]byte) (*VestingSchedule, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	schedule, ok := e.state.ScheduleGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: schedule %x", ErrNotFound, id)
	}
	return schedule, nil
}

func wrapMath(err error) error {
	if errors.Is(err, safemath.ErrOverflow) {
		return fmt.Errorf("%w: %v", ErrMathOverflow, err)
	}
	return err
}

// CreateSchedule locks the schedule's total deposit in a fresh custody record
// for the recipient. The creator funds the deposit fee-inclusive so the exact
// total arrives in the vault.
func (e *Engine) CreateSchedule(creator, recipient [20]byte, token string, base [32]byte, params ScheduleParams) (*VestingSchedule, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	totalDeposit, err := params.TotalDepositAmount()
	if err != nil {
		return nil, wrapMath(err)
	}
	fee, err := e.transferFee(normalized)
	if err != nil {
		return nil, err
	}
	gross, err := fee.GrossForNet(totalDeposit)
	if err != nil {
		return nil, wrapMath(err)
	}
	id := ScheduleAddress(base)
	if _, exists := e.state.ScheduleGet(id); exists {
		return nil, fmt.Errorf("%w: schedule %x", ErrAlreadyExists, id)
	}
	schedule := &VestingSchedule{
		ID:             id,
		Recipient:      recipient,
		Creator:        creator,
		Token:          normalized,
		Base:           base,
		ScheduleParams: params,
		CreatedAt:      e.now(),
	}
	if err := e.transfer(creator, VaultAddress(id), normalized, gross); err != nil {
		return nil, err
	}
	if err := e.state.ScheduleCreate(schedule); err != nil {
		return nil, err
	}
	e.emit(NewScheduleCreatedEvent(schedule))
	return schedule.Clone(), nil
}

// Claim pays the recipient up to maxAmount of the currently claimable funds.
// A zero payout is a valid no-op outcome, not an error.
func (e *Engine) Claim(id [32]byte, signer [20]byte, maxAmount uint64) (uint64, error) {
	schedule, err := e.loadSchedule(id)
	if err != nil {
		return 0, err
	}
	if schedule.Cancelled() {
		return 0, ErrAlreadyCancelled
	}
	if signer != schedule.Recipient {
		return 0, ErrNotPermitted
	}
	now := e.now()
	claimable, err := schedule.ClaimableAmount(now)
	if err != nil {
		return 0, wrapMath(err)
	}
	amount := min(claimable, maxAmount)
	if err := schedule.accumulateClaimed(amount); err != nil {
		return 0, wrapMath(err)
	}
	if err := e.transfer(VaultAddress(id), schedule.Recipient, schedule.Token, amount); err != nil {
		return 0, err
	}
	if err := e.state.SchedulePut(schedule); err != nil {
		return 0, err
	}
	e.emit(NewClaimedEvent(schedule, amount, now))
	return amount, nil
}

// Cancel settles the schedule: the currently claimable amount is paid to the
// recipient and the still-locked remainder returns to the creator. The first
// successful cancel wins; a repeat attempt is rejected.
func (e *Engine) Cancel(id [32]byte, signer [20]byte) error {
	schedule, err := e.loadSchedule(id)
	if err != nil {
		return err
	}
	if schedule.Cancelled() {
		return ErrAlreadyCancelled
	}
	if !schedule.CancelMode.Authorizes(signer, schedule.Creator, schedule.Recipient) {
		return ErrNotPermitted
	}
	now := e.now()
	if now == 0 {
		return ErrTimestampZero
	}
	claimable, err := schedule.ClaimableAmount(now)
	if err != nil {
		return wrapMath(err)
	}
	vault := VaultAddress(id)
	balance, err := e.state.Balance(vault, schedule.Token)
	if err != nil {
		return err
	}
	remaining, err := safemath.Sub(balance, claimable)
	if err != nil {
		return wrapMath(err)
	}
	if err := e.transfer(vault, schedule.Recipient, schedule.Token, claimable); err != nil {
		return err
	}
	if err := e.transfer(vault, schedule.Creator, schedule.Token, remaining); err != nil {
		return err
	}
	schedule.CancelledAt = now
	if err := e.state.SchedulePut(schedule); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(schedule, signer, claimable, remaining))
	return nil
}

// UpdateRecipient reassigns the schedule to a new recipient if the update
// mode authorizes the signer. Cancelled schedules cannot be reassigned.
func (e *Engine) UpdateRecipient(id [32]byte, signer, newRecipient [20]byte) error {
	schedule, err := e.loadSchedule(id)
	if err != nil {
		return err
	}
	if schedule.Cancelled() {
		return ErrAlreadyCancelled
	}
	if !schedule.UpdateRecipientMode.Authorizes(signer, schedule.Creator, schedule.Recipient) {
		return ErrNotPermitted
	}
	oldRecipient := schedule.Recipient
	schedule.Recipient = newRecipient
	if err := e.state.SchedulePut(schedule); err != nil {
		return err
	}
	e.emit(NewRecipientUpdatedEvent(schedule, signer, oldRecipient, newRecipient))
	return nil
}

// CloseSchedule reclaims the storage of a fully settled schedule. Only the
// creator may close, and only after every deposited token has left the vault
// through claims or cancellation.
func (e *Engine) CloseSchedule(id [32]byte, signer [20]byte) error {
	schedule, err := e.loadSchedule(id)
	if err != nil {
		return err
	}
	if signer != schedule.Creator {
		return ErrNotPermitted
	}
	if !schedule.Cancelled() {
		totalDeposit, err := schedule.TotalDepositAmount()
		if err != nil {
			return wrapMath(err)
		}
		if schedule.TotalClaimedAmount != totalDeposit {
			return ErrClaimingNotFinished
		}
	}
	balance, err := e.state.Balance(VaultAddress(id), schedule.Token)
	if err != nil {
		return err
	}
	if balance != 0 {
		return ErrClaimingNotFinished
	}
	if err := e.state.ScheduleDelete(id); err != nil {
		return err
	}
	e.emit(NewScheduleClosedEvent(schedule, signer))
	return nil
}

// GetSchedule returns a copy of the schedule record.
func (e *Engine) GetSchedule(id [32]byte) (*VestingSchedule, error) {
	schedule, err := e.loadSchedule(id)
	if err != nil {
		return nil, err
	}
	return schedule.Clone(), nil
}
