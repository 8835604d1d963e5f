package domain

import "errors"

var (
	// ErrInvalidAmount is returned when a total is not positive or an optional amount is negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnpairedTaxField is returned when one member of a base/tax pair is present without its partner.
	ErrUnpairedTaxField = errors.New("unpaired tax field")

	// ErrInvalidTransition is returned when a status change would move a part or split backwards.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPartIndexOutOfRange is returned when a part index does not exist in the split payment.
	ErrPartIndexOutOfRange = errors.New("part index out of range")
)
