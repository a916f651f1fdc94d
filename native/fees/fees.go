// Package fees implements the transfer-fee math for tokens that deduct a
// proportional fee, capped at an absolute maximum, from every transfer. The
// engine uses it to compute the fee-inclusive gross amount that must move so a
// target net amount lands in the destination custody account.
package fees

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"lockvault/native/lockup/safemath"
)

// BasisPointsDenominator is the fee rate denominator: 10_000 bps == 100%.
const BasisPointsDenominator = 10_000

var (
	// ErrInvalidBasisPoints reports a configured rate above 100%.
	ErrInvalidBasisPoints = errors.New("fees: basis points exceed denominator")
	// ErrFeeCalculation reports that the fee-inclusive amount failed the
	// re-derivation check and cannot be trusted.
	ErrFeeCalculation = errors.New("fees: transfer fee calculation failure")
)

// TransferFee describes the proportional fee a token levies on transfers.
// The zero value charges no fee.
type TransferFee struct {
	BasisPoints uint16
	MaximumFee  uint64
}

// Validate rejects rates above 100%.
func (f TransferFee) Validate() error {
	if f.BasisPoints > BasisPointsDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidBasisPoints, f.BasisPoints)
	}
	return nil
}

// Fee returns the fee deducted from a transfer of the given gross amount:
// ceil(gross * bps / 10000), capped at MaximumFee.
func (f TransferFee) Fee(gross uint64) (uint64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	if f.BasisPoints == 0 || gross == 0 {
		return 0, nil
	}
	numerator := new(uint256.Int).Mul(
		uint256.NewInt(gross),
		uint256.NewInt(uint64(f.BasisPoints)),
	)
	raw := ceilDiv(numerator, BasisPointsDenominator)
	if !raw.IsUint64() || raw.Uint64() > f.MaximumFee {
		return f.MaximumFee, nil
	}
	return raw.Uint64(), nil
}

// GrossForNet returns the fee-inclusive amount that must be transferred so
// that, after the fee is deducted, at least net arrives. The result is
// re-checked against Fee before being returned; an inconsistent fee fails
// closed with ErrFeeCalculation rather than under-funding the destination.
func (f TransferFee) GrossForNet(net uint64) (uint64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	if net == 0 {
		return 0, nil
	}
	gross, err := f.preFeeAmount(net)
	if err != nil {
		return 0, err
	}
	fee, err := f.Fee(gross)
	if err != nil {
		return 0, err
	}
	arrived, err := safemath.Sub(gross, fee)
	if err != nil {
		return 0, err
	}
	if arrived < net {
		return 0, fmt.Errorf("%w: gross %d nets %d, want %d", ErrFeeCalculation, gross, arrived, net)
	}
	return gross, nil
}

// InverseFee returns the fee charged on the fee-inclusive amount for net.
func (f TransferFee) InverseFee(net uint64) (uint64, error) {
	gross, err := f.GrossForNet(net)
	if err != nil {
		return 0, err
	}
	return f.Fee(gross)
}

func (f TransferFee) preFeeAmount(net uint64) (uint64, error) {
	if f.BasisPoints == 0 {
		return net, nil
	}
	if f.BasisPoints == BasisPointsDenominator {
		return safemath.Add(net, f.MaximumFee)
	}
	numerator := new(uint256.Int).Mul(
		uint256.NewInt(net),
		uint256.NewInt(BasisPointsDenominator),
	)
	raw := ceilDiv(numerator, BasisPointsDenominator-uint64(f.BasisPoints))
	overhead := new(uint256.Int).Sub(raw, uint256.NewInt(net))
	if overhead.CmpUint64(f.MaximumFee) >= 0 {
		return safemath.Add(net, f.MaximumFee)
	}
	if !raw.IsUint64() {
		return 0, fmt.Errorf("%w: pre-fee amount overflows", ErrFeeCalculation)
	}
	return raw.Uint64(), nil
}

func ceilDiv(numerator *uint256.Int, denominator uint64) *uint256.Int {
	sum := new(uint256.Int).Add(numerator, uint256.NewInt(denominator-1))
	return sum.Div(sum, uint256.NewInt(denominator))
}
