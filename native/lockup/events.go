package lockup

import (
	"encoding/hex"
	"strconv"

	"lockvault/core/types"
)

const (
	EventTypeScheduleCreated  = "lockup.schedule.created"
	EventTypeClaimed          = "lockup.schedule.claimed"
	EventTypeCancelled        = "lockup.schedule.cancelled"
	EventTypeRecipientUpdated = "lockup.schedule.recipient_updated"
	EventTypeScheduleClosed   = "lockup.schedule.closed"
	EventTypeRootCreated      = "lockup.root.created"
	EventTypeRootFunded       = "lockup.root.funded"
	EventTypeMaterialized     = "lockup.root.materialized"
	EventTypeRootClaimed      = "lockup.root.claimed"
	EventTypeBadgeRegistered  = "lockup.badge.registered"
	EventTypeBadgeRemoved     = "lockup.badge.removed"
)

// NewScheduleCreatedEvent returns the canonical payload for a newly created
// vesting schedule.
func NewScheduleCreatedEvent(s *VestingSchedule) *types.Event {
	attrs := scheduleAttrs(s)
	return &types.Event{Type: EventTypeScheduleCreated, Attributes: attrs}
}

// NewClaimedEvent returns the canonical payload for a claim payout.
func NewClaimedEvent(s *VestingSchedule, amount, now uint64) *types.Event {
	attrs := scheduleAttrs(s)
	attrs["amount"] = strconv.FormatUint(amount, 10)
	attrs["timestamp"] = strconv.FormatUint(now, 10)
	return &types.Event{Type: EventTypeClaimed, Attributes: attrs}
}

// NewCancelledEvent returns the canonical payload for a cancellation
// settlement, reporting both legs of the split.
func NewCancelledEvent(s *VestingSchedule, signer [20]byte, claimable, remaining uint64) *types.Event {
	attrs := scheduleAttrs(s)
	attrs["signer"] = hex.EncodeToString(signer[:])
	attrs["claimableAmount"] = strconv.FormatUint(claimable, 10)
	attrs["remainingAmount"] = strconv.FormatUint(remaining, 10)
	attrs["cancelledAt"] = strconv.FormatUint(s.CancelledAt, 10)
	return &types.Event{Type: EventTypeCancelled, Attributes: attrs}
}

// NewRecipientUpdatedEvent reports a recipient reassignment with both the old
// and the new recipient.
func NewRecipientUpdatedEvent(s *VestingSchedule, signer, oldRecipient, newRecipient [20]byte) *types.Event {
	attrs := scheduleAttrs(s)
	attrs["signer"] = hex.EncodeToString(signer[:])
	attrs["oldRecipient"] = hex.EncodeToString(oldRecipient[:])
	attrs["newRecipient"] = hex.EncodeToString(newRecipient[:])
	return &types.Event{Type: EventTypeRecipientUpdated, Attributes: attrs}
}

// NewScheduleClosedEvent reports a settled schedule's storage being reclaimed.
func NewScheduleClosedEvent(s *VestingSchedule, signer [20]byte) *types.Event {
	attrs := scheduleAttrs(s)
	attrs["signer"] = hex.EncodeToString(signer[:])
	return &types.Event{Type: EventTypeScheduleClosed, Attributes: attrs}
}

// NewRootCreatedEvent reports a published distribution batch.
func NewRootCreatedEvent(r *RootEscrow) *types.Event {
	return &types.Event{Type: EventTypeRootCreated, Attributes: rootAttrs(r)}
}

// NewRootFundedEvent reports a pool top-up with the amount actually funded.
func NewRootFundedEvent(r *RootEscrow, funded uint64) *types.Event {
	attrs := rootAttrs(r)
	attrs["fundedAmount"] = strconv.FormatUint(funded, 10)
	return &types.Event{Type: EventTypeRootFunded, Attributes: attrs}
}

// NewMaterializedEvent reports a recipient's schedule being drawn from a pool.
func NewMaterializedEvent(r *RootEscrow, s *VestingSchedule) *types.Event {
	attrs := rootAttrs(r)
	attrs["escrow"] = hex.EncodeToString(s.ID[:])
	attrs["recipient"] = hex.EncodeToString(s.Recipient[:])
	return &types.Event{Type: EventTypeMaterialized, Attributes: attrs}
}

// NewRootClaimedEvent reports a stateless claim against a pool.
func NewRootClaimedEvent(r *RootEscrow, status *ClaimStatus, amount, now uint64) *types.Event {
	attrs := rootAttrs(r)
	attrs["recipient"] = hex.EncodeToString(status.Recipient[:])
	attrs["amount"] = strconv.FormatUint(amount, 10)
	attrs["totalClaimedAmount"] = strconv.FormatUint(status.TotalClaimedAmount, 10)
	attrs["timestamp"] = strconv.FormatUint(now, 10)
	return &types.Event{Type: EventTypeRootClaimed, Attributes: attrs}
}

// NewBadgeRegisteredEvent reports a token approved for fee-bearing custody.
func NewBadgeRegisteredEvent(b *TokenBadge, admin [20]byte) *types.Event {
	attrs := map[string]string{
		"token":       b.Token,
		"basisPoints": strconv.FormatUint(uint64(b.BasisPoints), 10),
		"maximumFee":  strconv.FormatUint(b.MaximumFee, 10),
		"admin":       hex.EncodeToString(admin[:]),
	}
	return &types.Event{Type: EventTypeBadgeRegistered, Attributes: attrs}
}

// NewBadgeRemovedEvent reports a badge removal.
func NewBadgeRemovedEvent(token string, admin [20]byte) *types.Event {
	attrs := map[string]string{
		"token": token,
		"admin": hex.EncodeToString(admin[:]),
	}
	return &types.Event{Type: EventTypeBadgeRemoved, Attributes: attrs}
}

func scheduleAttrs(s *VestingSchedule) map[string]string {
	attrs := make(map[string]string)
	if s == nil {
		return attrs
	}
	attrs["escrow"] = hex.EncodeToString(s.ID[:])
	attrs["recipient"] = hex.EncodeToString(s.Recipient[:])
	attrs["creator"] = hex.EncodeToString(s.Creator[:])
	attrs["token"] = s.Token
	attrs["vestingStartTime"] = strconv.FormatUint(s.VestingStartTime, 10)
	attrs["cliffTime"] = strconv.FormatUint(s.CliffTime, 10)
	attrs["frequency"] = strconv.FormatUint(s.Frequency, 10)
	attrs["cliffUnlockAmount"] = strconv.FormatUint(s.CliffUnlockAmount, 10)
	attrs["amountPerPeriod"] = strconv.FormatUint(s.AmountPerPeriod, 10)
	attrs["numberOfPeriod"] = strconv.FormatUint(s.NumberOfPeriod, 10)
	attrs["updateRecipientMode"] = strconv.FormatUint(uint64(s.UpdateRecipientMode), 10)
	attrs["cancelMode"] = strconv.FormatUint(uint64(s.CancelMode), 10)
	return attrs
}

func rootAttrs(r *RootEscrow) map[string]string {
	attrs := make(map[string]string)
	if r == nil {
		return attrs
	}
	attrs["rootEscrow"] = hex.EncodeToString(r.ID[:])
	attrs["token"] = r.Token
	attrs["creator"] = hex.EncodeToString(r.Creator[:])
	attrs["root"] = hex.EncodeToString(r.Root[:])
	attrs["version"] = strconv.FormatUint(r.Version, 10)
	attrs["maxClaimAmount"] = strconv.FormatUint(r.MaxClaimAmount, 10)
	attrs["maxEscrow"] = strconv.FormatUint(r.MaxEscrow, 10)
	attrs["totalFundedAmount"] = strconv.FormatUint(r.TotalFundedAmount, 10)
	attrs["totalEscrowCreated"] = strconv.FormatUint(r.TotalEscrowCreated, 10)
	attrs["totalDistributeAmount"] = strconv.FormatUint(r.TotalDistributeAmount, 10)
	return attrs
}
