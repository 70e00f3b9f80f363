package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes into the categories callers branch on.
type Kind string

const (
	KindNotFound             Kind = "NOT_FOUND"
	KindNotActive            Kind = "NOT_ACTIVE"
	KindNotStarted           Kind = "NOT_STARTED"
	KindEnded                Kind = "ENDED"
	KindCapacityExceeded     Kind = "CAPACITY_EXCEEDED"
	KindInvalidConfiguration Kind = "INVALID_CONFIGURATION"
	KindUnauthorized         Kind = "UNAUTHORIZED"
	KindUnsatisfiable        Kind = "UNSATISFIABLE"
	KindSettlement           Kind = "SETTLEMENT"
	KindInternal             Kind = "INTERNAL"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Kind       Kind   `json:"kind"`
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
func New(code string, kind Kind, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, kind Kind, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// IsKind reports whether err (or anything it wraps) is an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// HasCode reports whether err (or anything it wraps) is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ---- Configuration (CFG) ----

func ErrRarityWeightSum(sum int64) *AppError {
	return New("CFG_001", KindInvalidConfiguration,
		fmt.Sprintf("Rarity weights must sum to 10000 bps, got %d", sum), http.StatusBadRequest)
}

func ErrLengthMismatch() *AppError {
	return New("CFG_002", KindInvalidConfiguration, "Batch arrays must have equal length", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("CFG_003", KindInvalidConfiguration, "Amount must be positive", http.StatusBadRequest)
}

func ErrDuplicateRarityLevel(level uint8) *AppError {
	return New("CFG_004", KindInvalidConfiguration,
		fmt.Sprintf("Rarity level %d appears more than once", level), http.StatusBadRequest)
}

func ErrValueOverflow() *AppError {
	return New("CFG_005", KindInvalidConfiguration, "Computed value overflows", http.StatusUnprocessableEntity)
}

// Validation returns a CFG-style validation error for malformed input.
func Validation(message string) *AppError {
	return New("CFG_000", KindInvalidConfiguration, message, http.StatusBadRequest)
}

// ---- Issuance (ISS) ----

func ErrSeriesNotFound(id string) *AppError {
	return New("ISS_001", KindNotFound, fmt.Sprintf("Series %q not found", id), http.StatusNotFound)
}

func ErrSeriesNotActive(id string) *AppError {
	return New("ISS_002", KindNotActive, fmt.Sprintf("Series %q is not active", id), http.StatusConflict)
}

func ErrSeriesNotStarted(id string) *AppError {
	return New("ISS_003", KindNotStarted, fmt.Sprintf("Series %q has not started", id), http.StatusConflict)
}

func ErrSeriesEnded(id string) *AppError {
	return New("ISS_004", KindEnded, fmt.Sprintf("Series %q has ended", id), http.StatusConflict)
}

func ErrSeriesCapacityExceeded(id string) *AppError {
	return New("ISS_005", KindCapacityExceeded, fmt.Sprintf("Series %q max supply reached", id), http.StatusConflict)
}

func ErrDenominationNotFound(id uint8) *AppError {
	return New("ISS_006", KindNotFound, fmt.Sprintf("Denomination %d not found", id), http.StatusNotFound)
}

func ErrDenominationNotActive(id uint8) *AppError {
	return New("ISS_007", KindNotActive, fmt.Sprintf("Denomination %d is not active", id), http.StatusConflict)
}

func ErrRarityNotFound(level uint8) *AppError {
	return New("ISS_008", KindNotFound, fmt.Sprintf("Rarity tier %d not configured", level), http.StatusNotFound)
}

func ErrNoRarityTiers() *AppError {
	return New("ISS_009", KindInvalidConfiguration, "No rarity tiers configured", http.StatusConflict)
}

// ---- Rewards (RWD) ----

func ErrRewardTierNotFound(id uint32) *AppError {
	return New("RWD_001", KindNotFound, fmt.Sprintf("Reward tier %d not found", id), http.StatusNotFound)
}

func ErrRewardSupplyExceeded(denominationID uint8) *AppError {
	return New("RWD_002", KindCapacityExceeded,
		fmt.Sprintf("Reward supply limit reached for denomination %d", denominationID), http.StatusConflict)
}

func ErrUnsatisfiable(value int64) *AppError {
	return New("RWD_003", KindUnsatisfiable,
		fmt.Sprintf("Value %d cannot be expressed with available denominations", value), http.StatusUnprocessableEntity)
}

func ErrRewardsDisabled() *AppError {
	return New("RWD_004", KindNotActive, "Reward system is disabled", http.StatusConflict)
}

func ErrDefaultSeriesUnset() *AppError {
	return New("RWD_005", KindInvalidConfiguration, "Default reward series is not configured", http.StatusConflict)
}

// ---- Redemption (RDM) ----

func ErrNoteNotFound(tokenID uint64) *AppError {
	return New("RDM_001", KindNotFound, fmt.Sprintf("Note %d not found", tokenID), http.StatusNotFound)
}

func ErrNotHolder() *AppError {
	return New("RDM_002", KindUnauthorized, "Caller does not hold this note", http.StatusForbidden)
}

func ErrSettlementFailed(settlementID string, err error) *AppError {
	return Wrap("RDM_003", KindSettlement,
		fmt.Sprintf("Note retired but settlement %s is incomplete", settlementID), http.StatusBadGateway, err)
}

func ErrUntrustedGranter() *AppError {
	return New("RDM_004", KindUnauthorized, "Granter is not trusted", http.StatusForbidden)
}

func ErrSettlementNotFound(id string) *AppError {
	return New("RDM_005", KindNotFound, fmt.Sprintf("Settlement %s not found", id), http.StatusNotFound)
}

func ErrSettlementNotRetryable(id string) *AppError {
	return New("RDM_006", KindInvalidConfiguration,
		fmt.Sprintf("Settlement %s is not in a failed state", id), http.StatusConflict)
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidAccessKey() *AppError {
	return New("SEC_001", KindUnauthorized, "Invalid access key", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", KindUnauthorized, "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", KindUnauthorized, "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", KindUnauthorized, "Nonce has already been used", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New("SEC_005", KindUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbiddenRole() *AppError {
	return New("SEC_006", KindUnauthorized, "Credential not permitted for this route", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", KindCapacityExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New("RATE_002", KindCapacityExceeded, fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrCollaborator(name string, err error) *AppError {
	return Wrap("SYS_002", KindInternal, fmt.Sprintf("%s call failed", name), http.StatusBadGateway, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal server error", http.StatusInternalServerError, err)
}
