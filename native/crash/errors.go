package crash

import "errors"

var (
	// Authorization.
	ErrUnauthorized = errors.New("crash: unauthorized")

	// Validation.
	ErrInvalidAmount     = errors.New("crash: amount must be positive")
	ErrInvalidMultiplier = errors.New("crash: multiplier out of range (1.00x - 100.00x)")
	ErrInvalidName       = errors.New("crash: round name must not be empty")
	ErrNameTooLong       = errors.New("crash: round name too long (max 32 chars)")
	ErrTaxTooHigh        = errors.New("crash: tax cannot exceed 10%")

	// State.
	ErrAlreadyInitialized  = errors.New("crash: already initialized")
	ErrNotInitialized      = errors.New("crash: not initialized")
	ErrUserExists          = errors.New("crash: user account already exists")
	ErrUserNotFound        = errors.New("crash: user account not found")
	ErrRoundExists         = errors.New("crash: round already exists")
	ErrRoundNotFound       = errors.New("crash: round not found")
	ErrRoundNotActive      = errors.New("crash: round is not active")
	ErrBetExists           = errors.New("crash: bet already exists for this round")
	ErrBetNotFound         = errors.New("crash: bet not found")
	ErrActiveBetExists     = errors.New("crash: user already has an active bet")
	ErrBetStillActive      = errors.New("crash: bet is still active")
	ErrAlreadyClaimed      = errors.New("crash: payout already claimed")
	ErrNoPayout            = errors.New("crash: no payout available")
	ErrInsufficientBalance = errors.New("crash: insufficient balance")

	// Arithmetic.
	ErrMathOverflow = errors.New("crash: math overflow")

	// Address integrity.
	ErrInvalidAddress = errors.New("crash: derived identity mismatch")
	ErrInvalidChunk   = errors.New("crash: index chunk mismatch")
)
