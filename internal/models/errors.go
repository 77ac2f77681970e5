package models

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInactiveAccount     = errors.New("account is inactive")
	ErrSameAccount         = errors.New("cannot transfer to the same account")
	ErrAccountNotFound     = errors.New("account not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrBelowMinimumBalance = errors.New("amount is below the minimum balance")
	ErrNonZeroBalance      = errors.New("account balance is not zero")
	ErrDailyLimitExceeded  = errors.New("daily limit exceeded")

	ErrWrongRole          = errors.New("user has the wrong role")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrPermissionDenied   = errors.New("permission denied")
)
