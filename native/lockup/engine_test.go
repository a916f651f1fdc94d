package lockup

import (
	"errors"
	"fmt"
	"testing"

	"lockvault/core/events"
	"lockvault/core/types"
	"lockvault/native/fees"
	"lockvault/native/lockup/safemath"
)

type claimKey struct {
	pool      [32]byte
	recipient [20]byte
}

type balanceKey struct {
	addr  [20]byte
	token string
}

type mockState struct {
	schedules map[[32]byte]*VestingSchedule
	roots     map[[32]byte]*RootEscrow
	claims    map[claimKey]*ClaimStatus
	badges    map[string]*TokenBadge
	balances  map[balanceKey]uint64
	collected map[string]uint64
}

func newMockState() *mockState {
	return &mockState{
		schedules: make(map[[32]byte]*VestingSchedule),
		roots:     make(map[[32]byte]*RootEscrow),
		claims:    make(map[claimKey]*ClaimStatus),
		badges:    make(map[string]*TokenBadge),
		balances:  make(map[balanceKey]uint64),
		collected: make(map[string]uint64),
	}
}

func (m *mockState) ScheduleCreate(s *VestingSchedule) error {
	if _, exists := m.schedules[s.ID]; exists {
		return fmt.Errorf("%w: schedule %x", ErrAlreadyExists, s.ID)
	}
	m.schedules[s.ID] = s.Clone()
	return nil
}

func (m *mockState) SchedulePut(s *VestingSchedule) error {
	m.schedules[s.ID] = s.Clone()
	return nil
}

func (m *mockState) ScheduleGet(id [32]byte) (*VestingSchedule, bool) {
	s, ok := m.schedules[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (m *mockState) ScheduleDelete(id [32]byte) error {
	delete(m.schedules, id)
	return nil
}

func (m *mockState) RootEscrowCreate(r *RootEscrow) error {
	if _, exists := m.roots[r.ID]; exists {
		return fmt.Errorf("%w: root escrow %x", ErrAlreadyExists, r.ID)
	}
	m.roots[r.ID] = r.Clone()
	return nil
}

func (m *mockState) RootEscrowPut(r *RootEscrow) error {
	m.roots[r.ID] = r.Clone()
	return nil
}

func (m *mockState) RootEscrowGet(id [32]byte) (*RootEscrow, bool) {
	r, ok := m.roots[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

func (m *mockState) ClaimStatusGet(pool [32]byte, recipient [20]byte) (*ClaimStatus, bool) {
	c, ok := m.claims[claimKey{pool: pool, recipient: recipient}]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (m *mockState) ClaimStatusPut(c *ClaimStatus) error {
	m.claims[claimKey{pool: c.Pool, recipient: c.Recipient}] = c.Clone()
	return nil
}

func (m *mockState) TokenBadgeGet(token string) (*TokenBadge, bool) {
	b, ok := m.badges[token]
	if !ok {
		return nil, false
	}
	clone := *b
	return &clone, true
}

func (m *mockState) TokenBadgePut(b *TokenBadge) error {
	clone := *b
	m.badges[b.Token] = &clone
	return nil
}

func (m *mockState) TokenBadgeDelete(token string) error {
	delete(m.badges, token)
	return nil
}

func (m *mockState) Balance(addr [20]byte, token string) (uint64, error) {
	return m.balances[balanceKey{addr: addr, token: token}], nil
}

// Transfer debits the exact amount and credits it net of the token's transfer
// fee, mirroring the ledger's fee-on-transfer behaviour.
func (m *mockState) Transfer(from, to [20]byte, token string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromKey := balanceKey{addr: from, token: token}
	debited, err := safemath.Sub(m.balances[fromKey], amount)
	if err != nil {
		return fmt.Errorf("insufficient balance: %w", err)
	}
	var feeAmount uint64
	if badge, ok := m.badges[token]; ok {
		fee := fees.TransferFee{BasisPoints: badge.BasisPoints, MaximumFee: badge.MaximumFee}
		feeAmount, err = fee.Fee(amount)
		if err != nil {
			return err
		}
	}
	m.balances[fromKey] = debited
	m.balances[balanceKey{addr: to, token: token}] += amount - feeAmount
	m.collected[token] += feeAmount
	return nil
}

func (m *mockState) mint(addr [20]byte, token string, amount uint64) {
	m.balances[balanceKey{addr: addr, token: token}] += amount
}

func (m *mockState) balance(addr [20]byte, token string) uint64 {
	return m.balances[balanceKey{addr: addr, token: token}]
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) last() *types.Event {
	if len(c.events) == 0 {
		return nil
	}
	provider, ok := c.events[len(c.events)-1].(interface{ Event() *types.Event })
	if !ok {
		return nil
	}
	return provider.Event()
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func testBase(fill byte) [32]byte {
	var base [32]byte
	for i := range base {
		base[i] = fill
	}
	return base
}

type engineEnv struct {
	engine  *Engine
	state   *mockState
	emitter *captureEmitter
	now     uint64
}

func newEngineEnv() *engineEnv {
	env := &engineEnv{state: newMockState(), emitter: &captureEmitter{}, now: 1_000}
	env.engine = NewEngine()
	env.engine.SetState(env.state)
	env.engine.SetEmitter(env.emitter)
	env.engine.SetNowFunc(func() uint64 { return env.now })
	return env
}

func testParams() ScheduleParams {
	return ScheduleParams{
		VestingStartTime:    900,
		CliffTime:           1_000,
		Frequency:           100,
		CliffUnlockAmount:   50,
		AmountPerPeriod:     10,
		NumberOfPeriod:      5,
		UpdateRecipientMode: PermissionEither,
		CancelMode:          PermissionCreator,
	}
}

func TestCreateScheduleLocksDeposit(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	recipient := testAddr(0x02)
	env.state.mint(creator, "NHB", 500)

	schedule, err := env.engine.CreateSchedule(creator, recipient, "nhb", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if schedule.Token != "NHB" {
		t.Fatalf("token = %q, want NHB", schedule.Token)
	}
	if schedule.CreatedAt != env.now {
		t.Fatalf("created at = %d, want %d", schedule.CreatedAt, env.now)
	}
	if got := env.state.balance(VaultAddress(schedule.ID), "NHB"); got != 100 {
		t.Fatalf("vault balance = %d, want total deposit 100", got)
	}
	if got := env.state.balance(creator, "NHB"); got != 400 {
		t.Fatalf("creator balance = %d, want 400", got)
	}
	if evt := env.emitter.last(); evt == nil || evt.Type != EventTypeScheduleCreated {
		t.Fatalf("last event = %+v, want %s", evt, EventTypeScheduleCreated)
	}
}

func TestCreateScheduleDuplicateBase(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	env.state.mint(creator, "NHB", 500)
	if _, err := env.engine.CreateSchedule(creator, testAddr(0x02), "NHB", testBase(0xA0), testParams()); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	_, err := env.engine.CreateSchedule(creator, testAddr(0x03), "NHB", testBase(0xA0), testParams())
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateScheduleRejectsInvalidParams(t *testing.T) {
	env := newEngineEnv()
	params := testParams()
	params.Frequency = 0
	if _, err := env.engine.CreateSchedule(testAddr(1), testAddr(2), "NHB", testBase(1), params); !errors.Is(err, ErrFrequencyIsZero) {
		t.Fatalf("err = %v, want ErrFrequencyIsZero", err)
	}
}

func TestCreateScheduleInsufficientFunds(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	env.state.mint(creator, "NHB", 99)
	if _, err := env.engine.CreateSchedule(creator, testAddr(0x02), "NHB", testBase(0xA0), testParams()); err == nil {
		t.Fatal("expected transfer failure for an underfunded creator")
	}
	if len(env.state.schedules) != 0 {
		t.Fatal("failed create must not persist a schedule")
	}
}

func TestClaimLifecycle(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	recipient := testAddr(0x02)
	env.state.mint(creator, "NHB", 500)
	schedule, err := env.engine.CreateSchedule(creator, recipient, "NHB", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	// Before the cliff nothing is claimable; a zero payout is a valid no-op.
	env.now = 999
	paid, err := env.engine.Claim(schedule.ID, recipient, 1_000)
	if err != nil {
		t.Fatalf("claim before cliff: %v", err)
	}
	if paid != 0 {
		t.Fatalf("paid = %d, want 0", paid)
	}

	// At t=1150 the unlock is 50 + 10 = 60; maxAmount caps the payout.
	env.now = 1_150
	paid, err = env.engine.Claim(schedule.ID, recipient, 25)
	if err != nil {
		t.Fatalf("claim capped: %v", err)
	}
	if paid != 25 {
		t.Fatalf("paid = %d, want 25", paid)
	}
	paid, err = env.engine.Claim(schedule.ID, recipient, 1_000)
	if err != nil {
		t.Fatalf("claim remainder: %v", err)
	}
	if paid != 35 {
		t.Fatalf("paid = %d, want 35", paid)
	}
	if got := env.state.balance(recipient, "NHB"); got != 60 {
		t.Fatalf("recipient balance = %d, want 60", got)
	}

	// Long after the end the full deposit drains.
	env.now = 10_000
	paid, err = env.engine.Claim(schedule.ID, recipient, 1_000)
	if err != nil {
		t.Fatalf("claim rest: %v", err)
	}
	if paid != 40 {
		t.Fatalf("paid = %d, want 40", paid)
	}
	if got := env.state.balance(VaultAddress(schedule.ID), "NHB"); got != 0 {
		t.Fatalf("vault balance = %d, want 0", got)
	}
	stored, err := env.engine.GetSchedule(schedule.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if stored.TotalClaimedAmount != 100 {
		t.Fatalf("total claimed = %d, want 100", stored.TotalClaimedAmount)
	}
}

func TestClaimOnlyRecipient(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	env.state.mint(creator, "NHB", 500)
	schedule, err := env.engine.CreateSchedule(creator, testAddr(0x02), "NHB", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if _, err := env.engine.Claim(schedule.ID, creator, 10); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestClaimUnknownSchedule(t *testing.T) {
	env := newEngineEnv()
	if _, err := env.engine.Claim(testBase(0x77), testAddr(1), 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelSplitsVault(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	recipient := testAddr(0x02)
	env.state.mint(creator, "NHB", 100)
	schedule, err := env.engine.CreateSchedule(creator, recipient, "NHB", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	// Recipient claims 25 of the 60 unlocked, then the creator cancels. The
	// still-unclaimed 35 goes to the recipient, the locked 40 back to the
	// creator.
	env.now = 1_150
	if _, err := env.engine.Claim(schedule.ID, recipient, 25); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := env.engine.Cancel(schedule.ID, creator); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := env.state.balance(recipient, "NHB"); got != 60 {
		t.Fatalf("recipient balance = %d, want 60", got)
	}
	if got := env.state.balance(creator, "NHB"); got != 40 {
		t.Fatalf("creator balance = %d, want 40", got)
	}
	if got := env.state.balance(VaultAddress(schedule.ID), "NHB"); got != 0 {
		t.Fatalf("vault balance = %d, want 0", got)
	}
	stored, err := env.engine.GetSchedule(schedule.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if stored.CancelledAt != 1_150 {
		t.Fatalf("cancelled at = %d, want 1150", stored.CancelledAt)
	}

	// First cancel wins; repeats and post-cancel claims are rejected.
	if err := env.engine.Cancel(schedule.ID, creator); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("err = %v, want ErrAlreadyCancelled", err)
	}
	if _, err := env.engine.Claim(schedule.ID, recipient, 10); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("err = %v, want ErrAlreadyCancelled", err)
	}
}

func TestCancelPermissions(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	recipient := testAddr(0x02)
	env.state.mint(creator, "NHB", 300)

	params := testParams()
	params.CancelMode = PermissionNeither
	frozen, err := env.engine.CreateSchedule(creator, recipient, "NHB", testBase(0xA1), params)
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if err := env.engine.Cancel(frozen.ID, creator); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}

	params.CancelMode = PermissionRecipient
	byRecipient, err := env.engine.CreateSchedule(creator, recipient, "NHB", testBase(0xA2), params)
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if err := env.engine.Cancel(byRecipient.ID, creator); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
	if err := env.engine.Cancel(byRecipient.ID, recipient); err != nil {
		t.Fatalf("recipient cancel: %v", err)
	}
}

func TestCancelRejectsZeroTimestamp(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	env.state.mint(creator, "NHB", 100)
	schedule, err := env.engine.CreateSchedule(creator, testAddr(0x02), "NHB", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	env.now = 0
	if err := env.engine.Cancel(schedule.ID, creator); !errors.Is(err, ErrTimestampZero) {
		t.Fatalf("err = %v, want ErrTimestampZero", err)
	}
}

func TestUpdateRecipient(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	recipient := testAddr(0x02)
	next := testAddr(0x03)
	env.state.mint(creator, "NHB", 300)

	schedule, err := env.engine.CreateSchedule(creator, recipient, "NHB", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if err := env.engine.UpdateRecipient(schedule.ID, testAddr(0x09), next); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
	if err := env.engine.UpdateRecipient(schedule.ID, recipient, next); err != nil {
		t.Fatalf("update recipient: %v", err)
	}
	stored, err := env.engine.GetSchedule(schedule.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if stored.Recipient != next {
		t.Fatal("recipient not reassigned")
	}
	// The new recipient claims, the old one cannot.
	env.now = 1_000
	if _, err := env.engine.Claim(schedule.ID, recipient, 10); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
	if _, err := env.engine.Claim(schedule.ID, next, 10); err != nil {
		t.Fatalf("claim as new recipient: %v", err)
	}

	params := testParams()
	params.UpdateRecipientMode = PermissionNeither
	sealed, err := env.engine.CreateSchedule(creator, recipient, "NHB", testBase(0xA1), params)
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if err := env.engine.UpdateRecipient(sealed.ID, creator, next); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestCloseSchedule(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	recipient := testAddr(0x02)
	env.state.mint(creator, "NHB", 100)
	schedule, err := env.engine.CreateSchedule(creator, recipient, "NHB", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	if err := env.engine.CloseSchedule(schedule.ID, creator); !errors.Is(err, ErrClaimingNotFinished) {
		t.Fatalf("err = %v, want ErrClaimingNotFinished", err)
	}
	env.now = 10_000
	if _, err := env.engine.Claim(schedule.ID, recipient, 1_000); err != nil {
		t.Fatalf("drain claim: %v", err)
	}
	if err := env.engine.CloseSchedule(schedule.ID, recipient); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
	if err := env.engine.CloseSchedule(schedule.ID, creator); err != nil {
		t.Fatalf("close schedule: %v", err)
	}
	if _, err := env.engine.GetSchedule(schedule.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCloseCancelledSchedule(t *testing.T) {
	env := newEngineEnv()
	creator := testAddr(0x01)
	env.state.mint(creator, "NHB", 100)
	schedule, err := env.engine.CreateSchedule(creator, testAddr(0x02), "NHB", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	env.now = 1_100
	if err := env.engine.Cancel(schedule.ID, creator); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := env.engine.CloseSchedule(schedule.ID, creator); err != nil {
		t.Fatalf("close cancelled schedule: %v", err)
	}
}

func TestTokenBadgeAdminGate(t *testing.T) {
	env := newEngineEnv()
	admin := testAddr(0xAD)
	env.engine.SetAdmins([][20]byte{admin})

	if _, err := env.engine.RegisterTokenBadge(testAddr(0x01), "NHB", 100, 50); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
	badge, err := env.engine.RegisterTokenBadge(admin, "nhb", 100, 50)
	if err != nil {
		t.Fatalf("register badge: %v", err)
	}
	if badge.Token != "NHB" || badge.BasisPoints != 100 {
		t.Fatalf("badge = %+v", badge)
	}
	if _, err := env.engine.RegisterTokenBadge(admin, "NHB", 200, 50); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	if err := env.engine.RemoveTokenBadge(testAddr(0x01), "NHB"); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
	if err := env.engine.RemoveTokenBadge(admin, "NHB"); err != nil {
		t.Fatalf("remove badge: %v", err)
	}
	if err := env.engine.RemoveTokenBadge(admin, "NHB"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateScheduleWithTransferFee(t *testing.T) {
	env := newEngineEnv()
	admin := testAddr(0xAD)
	env.engine.SetAdmins([][20]byte{admin})
	// 1% fee, generous cap.
	if _, err := env.engine.RegisterTokenBadge(admin, "NHB", 100, 1_000); err != nil {
		t.Fatalf("register badge: %v", err)
	}
	creator := testAddr(0x01)
	env.state.mint(creator, "NHB", 500)

	schedule, err := env.engine.CreateSchedule(creator, testAddr(0x02), "NHB", testBase(0xA0), testParams())
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	// Total deposit is 100; the fee-inclusive gross is 102, of which the fee
	// skims 2, so exactly 100 arrives in the vault.
	if got := env.state.balance(VaultAddress(schedule.ID), "NHB"); got != 100 {
		t.Fatalf("vault balance = %d, want exact deposit 100", got)
	}
	if got := env.state.balance(creator, "NHB"); got != 398 {
		t.Fatalf("creator balance = %d, want 398", got)
	}
	if got := env.state.collected["NHB"]; got != 2 {
		t.Fatalf("fee collected = %d, want 2", got)
	}
}
