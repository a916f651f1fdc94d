package lockup

import "lockvault/native/lockup/safemath"

// MaxUnlockedAmount returns the maximum amount the schedule has unlocked at
// the given timestamp. Nothing unlocks before the cliff; at or after it the
// cliff amount unlocks immediately plus one period amount per whole elapsed
// frequency interval, capped at NumberOfPeriod. The result is monotonic
// non-decreasing in now, which keeps ClaimableAmount's subtraction safe.
func (p ScheduleParams) MaxUnlockedAmount(now uint64) (uint64, error) {
	if now < p.CliffTime {
		return 0, nil
	}
	// Degenerate all-at-cliff schedule. Rejected at creation time, but
	// proof-carried parameters are evaluated as supplied.
	if p.Frequency == 0 {
		return p.CliffUnlockAmount, nil
	}
	elapsed, err := safemath.Sub(now, p.CliffTime)
	if err != nil {
		return 0, err
	}
	periods, err := safemath.Div(elapsed, p.Frequency)
	if err != nil {
		return 0, err
	}
	periods = min(periods, p.NumberOfPeriod)
	periodic, err := safemath.Mul(periods, p.AmountPerPeriod)
	if err != nil {
		return 0, err
	}
	return safemath.Add(p.CliffUnlockAmount, periodic)
}

// claimableAmount returns what may still be claimed at now given the amount
// already claimed.
func (p ScheduleParams) claimableAmount(now, totalClaimed uint64) (uint64, error) {
	unlocked, err := p.MaxUnlockedAmount(now)
	if err != nil {
		return 0, err
	}
	return safemath.Sub(unlocked, totalClaimed)
}

// ClaimableAmount returns what the recipient may claim from the schedule at
// the given timestamp.
func (s *VestingSchedule) ClaimableAmount(now uint64) (uint64, error) {
	return s.claimableAmount(now, s.TotalClaimedAmount)
}

// accumulateClaimed adds a paid-out amount to the claim accounting.
func (s *VestingSchedule) accumulateClaimed(amount uint64) error {
	total, err := safemath.Add(s.TotalClaimedAmount, amount)
	if err != nil {
		return err
	}
	s.TotalClaimedAmount = total
	return nil
}
