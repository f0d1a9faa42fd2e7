package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidAccessKey() *AppError {
	return New("SEC_001", "Invalid access key", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

// ---- Draft validation (VAL) ----

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrUnpricedSuffix(length int) *AppError {
	return New("VAL_002", fmt.Sprintf("No price for a %d-character custom ending", length), http.StatusBadRequest)
}

func ErrUserExcluded() *AppError {
	return New("VAL_003", "Account is not allowed to create tokens", http.StatusForbidden)
}

func ErrNotFound(entity string) *AppError {
	return New("VAL_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Wallet reservations (RSV) ----

func ErrWalletReserved() *AppError {
	return New("RSV_001", "Wallet is in use by another creation", http.StatusConflict)
}

// ---- Transaction ledger (TX) ----

func ErrAlreadyCreated() *AppError {
	return New("TX_001", "Transaction already used for a token", http.StatusConflict)
}

func ErrAlreadyInProcess() *AppError {
	return New("TX_002", "Transaction is already being processed", http.StatusConflict)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("TX_003", fmt.Sprintf("Cannot move transaction from %s to %s", from, to), http.StatusConflict)
}

// ---- Payment checks (CHK) ----

func ErrCheckInProgress() *AppError {
	return New("CHK_001", "A payment check is already running", http.StatusConflict)
}

func ErrCreationRunning() *AppError {
	return New("CHK_002", "Token creation already in progress", http.StatusConflict)
}

// ---- External actions (MINT, PAYOUT, CHAIN) ----

func ErrMintFailed(err error) *AppError {
	return Wrap("MINT_001", "Token creation failed", http.StatusBadGateway, err)
}

func ErrPayoutFailed(err error) *AppError {
	return Wrap("PAYOUT_001", "Commission payout failed", http.StatusBadGateway, err)
}

func ErrChainUnavailable(err error) *AppError {
	return Wrap("CHAIN_001", "Blockchain query failed", http.StatusServiceUnavailable, err)
}

// ---- Commissions (COM) ----

func ErrAlreadySettled() *AppError {
	return New("COM_001", "Commission already settled for this transaction", http.StatusConflict)
}

func ErrNotSettleable() *AppError {
	return New("COM_002", "Transaction has not produced a token", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrShuttingDown() *AppError {
	return New("SYS_002", "Service is shutting down", http.StatusServiceUnavailable)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
