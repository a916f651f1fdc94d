package fees

import (
	"errors"
	"math"
	"testing"
)

func TestFeeZeroRate(t *testing.T) {
	fee := TransferFee{}
	got, err := fee.Fee(1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("zero rate must charge zero fee, got %d", got)
	}
}

func TestFeeFullRate(t *testing.T) {
	fee := TransferFee{BasisPoints: BasisPointsDenominator, MaximumFee: 500}
	got, err := fee.Fee(1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 500 {
		t.Fatalf("full rate must charge the cap, got %d", got)
	}
	got, err = fee.Fee(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 100 {
		t.Fatalf("full rate on a small amount must charge the amount, got %d", got)
	}
}

func TestFeeRoundsUp(t *testing.T) {
	fee := TransferFee{BasisPoints: 1, MaximumFee: math.MaxUint64}
	got, err := fee.Fee(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Fatalf("fee must round up, got %d", got)
	}
}

func TestFeeInvalidRate(t *testing.T) {
	fee := TransferFee{BasisPoints: BasisPointsDenominator + 1}
	if _, err := fee.Fee(1); !errors.Is(err, ErrInvalidBasisPoints) {
		t.Fatalf("expected ErrInvalidBasisPoints, got %v", err)
	}
}

func TestGrossForNetZeroFee(t *testing.T) {
	fee := TransferFee{}
	gross, err := fee.GrossForNet(12345)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gross != 12345 {
		t.Fatalf("zero-fee gross must equal net, got %d", gross)
	}
}

func TestGrossForNetCapClamp(t *testing.T) {
	fee := TransferFee{BasisPoints: 5_000, MaximumFee: 10}
	gross, err := fee.GrossForNet(1_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gross != 1_010 {
		t.Fatalf("expected net+cap=1010, got %d", gross)
	}
}

// For a spread of rates, caps and nets the fee-inclusive amount must deliver
// at least net and no cheaper gross amount may satisfy the target.
func TestGrossForNetInverseLaw(t *testing.T) {
	rates := []uint16{0, 1, 25, 100, 2_500, 9_999, 10_000}
	caps := []uint64{0, 1, 500, math.MaxUint64}
	nets := []uint64{0, 1, 2, 99, 100, 10_000, 1 << 40}
	for _, bps := range rates {
		for _, cap := range caps {
			for _, net := range nets {
				fee := TransferFee{BasisPoints: bps, MaximumFee: cap}
				gross, err := fee.GrossForNet(net)
				if err != nil {
					t.Fatalf("bps=%d cap=%d net=%d: %v", bps, cap, net, err)
				}
				charged, err := fee.Fee(gross)
				if err != nil {
					t.Fatalf("bps=%d cap=%d net=%d: %v", bps, cap, net, err)
				}
				if gross-charged < net {
					t.Fatalf("bps=%d cap=%d net=%d: gross %d nets %d", bps, cap, net, gross, gross-charged)
				}
				if gross == 0 {
					continue
				}
				cheaper, err := fee.Fee(gross - 1)
				if err != nil {
					t.Fatalf("bps=%d cap=%d net=%d: %v", bps, cap, net, err)
				}
				if gross-1-cheaper >= net {
					t.Fatalf("bps=%d cap=%d net=%d: gross %d is not minimal", bps, cap, net, gross)
				}
			}
		}
	}
}

func TestInverseFeeNotBelowDirectFee(t *testing.T) {
	fee := TransferFee{BasisPoints: 30, MaximumFee: 1 << 32}
	for _, amount := range []uint64{0, 1, 999, 10_000, 123_456_789} {
		direct, err := fee.Fee(amount)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		net := amount - direct
		inverse, err := fee.InverseFee(net)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inverse < direct {
			t.Fatalf("inverse fee %d below direct fee %d for amount %d", inverse, direct, amount)
		}
	}
}
