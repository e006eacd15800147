package store

import "errors"

var (
	// ErrNotFound is returned by mutations whose target row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrKeyOnLoan is returned when a key is already part of an unreturned loan.
	ErrKeyOnLoan = errors.New("key is already on loan")

	// ErrKeyDisposed is returned when a disposed key is put on a new loan.
	ErrKeyDisposed = errors.New("key is disposed")

	// ErrLoanReturned is returned when picking up a loan that was already returned.
	ErrLoanReturned = errors.New("loan already returned")

	// ErrKeyInOtherBundle is returned when adding a key that belongs to another bundle.
	ErrKeyInOtherBundle = errors.New("key belongs to another bundle")

	// ErrConfirmationRequired is returned by RemoveBundleKeys when some of the
	// keys are out on loan and the caller did not confirm.
	ErrConfirmationRequired = errors.New("removal needs confirmation")

	// ErrContactHasActiveLoan is returned when deleting a contact that still
	// holds keys.
	ErrContactHasActiveLoan = errors.New("contact has an active loan")

	// ErrInvalidFile is returned when an uploaded receipt is not a PDF or image.
	ErrInvalidFile = errors.New("invalid receipt file")

	// ErrReservedHolderCode is returned for contact or holder codes that
	// start with lending.HolderCodeReserved.
	ErrReservedHolderCode = errors.New("holder code uses a reserved prefix")

	// ErrNoFile is returned when a receipt has no attached file.
	ErrNoFile = errors.New("receipt has no file")
)
