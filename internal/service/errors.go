package service

import (
	"errors"
)

// Sentinel errors for guard and validation failures. The HTTP layer maps
// these to 4xx responses; anything else is treated as an infrastructure
// fault.
var (
	ErrNotParty        = errors.New("actor is not a party to this job")
	ErrNotOwner        = errors.New("resource belongs to another user")
	ErrJobNotCompleted = errors.New("job is not completed yet")
	ErrAlreadyRated    = errors.New("rating already submitted for this job")
	ErrInvalidRating   = errors.New("rating must be an integer between 1 and 5")
	ErrValidation      = errors.New("invalid input")
)
