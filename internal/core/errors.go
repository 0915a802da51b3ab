package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the ledger. Callers match them with errors.Is.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateName       = errors.New("duplicate name")
	ErrNotFound            = errors.New("not found")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

var (
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be a positive decimal", ErrInvalidInput)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrInvalidInput)
	ErrSumOverflow     = fmt.Errorf("%w: amounts add up beyond the supported range", ErrInvalidInput)
	ErrEmptyName       = fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	ErrEmptyUser       = fmt.Errorf("%w: user cannot be empty", ErrInvalidInput)
	ErrUnknownCategory = fmt.Errorf("%w: category does not exist", ErrInvalidInput)
	ErrDescriptionLong = fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidInput, MaxDescriptionLen)
	ErrNameTooLong     = fmt.Errorf("%w: name too long (max %d characters)", ErrInvalidInput, MaxNameLen)
)

// UserMessage converts an error into a line fit for showing to the end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateName):
		return "Category name already exists"
	case errors.Is(err, ErrInvalidAmount):
		return "Please enter a valid amount"
	case errors.Is(err, ErrUnknownCategory):
		return "Please select a category"
	case errors.Is(err, ErrEmptyName):
		return "Please enter a name"
	case errors.Is(err, ErrInvalidInput):
		return "Invalid input: " + err.Error()
	case errors.Is(err, ErrNotFound):
		return "The requested item does not exist"
	case errors.Is(err, ErrConstraintViolation):
		return "An account with this email already exists"
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in first"
	case errors.Is(err, ErrProviderUnavailable):
		return "The sign-in service is unavailable, please try again"
	case errors.Is(err, ErrStorageUnavailable):
		return "Storage is unavailable, please try again"
	default:
		return "Something went wrong: " + err.Error()
	}
}
