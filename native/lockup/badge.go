package lockup

import (
	"fmt"

	"lockvault/native/fees"
)

// RegisterTokenBadge approves a token for fee-bearing custody and records its
// transfer-fee schedule. Only addresses on the injected admin allow-list may
// register badges.
func (e *Engine) RegisterTokenBadge(admin [20]byte, token string, basisPoints uint16, maximumFee uint64) (*TokenBadge, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, ok := e.admins[admin]; !ok {
		return nil, ErrNotPermitted
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	fee := fees.TransferFee{BasisPoints: basisPoints, MaximumFee: maximumFee}
	if err := fee.Validate(); err != nil {
		return nil, err
	}
	if _, exists := e.state.TokenBadgeGet(normalized); exists {
		return nil, fmt.Errorf("%w: token badge %s", ErrAlreadyExists, normalized)
	}
	badge := &TokenBadge{Token: normalized, BasisPoints: basisPoints, MaximumFee: maximumFee}
	if err := e.state.TokenBadgePut(badge); err != nil {
		return nil, err
	}
	e.emit(NewBadgeRegisteredEvent(badge, admin))
	return badge, nil
}

// RemoveTokenBadge deletes a badge, returning the token to fee-free handling.
func (e *Engine) RemoveTokenBadge(admin [20]byte, token string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, ok := e.admins[admin]; !ok {
		return ErrNotPermitted
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return err
	}
	if _, exists := e.state.TokenBadgeGet(normalized); !exists {
		return fmt.Errorf("%w: token badge %s", ErrNotFound, normalized)
	}
	if err := e.state.TokenBadgeDelete(normalized); err != nil {
		return err
	}
	e.emit(NewBadgeRemovedEvent(normalized, admin))
	return nil
}
