package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("ISS_005", KindCapacityExceeded, "Series full", http.StatusConflict),
			expected: "[ISS_005] Series full",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", KindInternal, "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", KindInternal, "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("CFG_003", KindInvalidConfiguration, "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestIsKind_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("issue note: %w", ErrSeriesCapacityExceeded("AA"))

	assert.True(t, IsKind(err, KindCapacityExceeded))
	assert.False(t, IsKind(err, KindNotFound))
	assert.True(t, HasCode(err, "ISS_005"))
	assert.False(t, IsKind(errors.New("plain"), KindInternal))
	assert.False(t, HasCode(nil, "ISS_005"))
}

func TestErrorCatalog(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		kind       Kind
		httpStatus int
	}{
		{"RarityWeightSum", ErrRarityWeightSum(9999), "CFG_001", KindInvalidConfiguration, 400},
		{"LengthMismatch", ErrLengthMismatch(), "CFG_002", KindInvalidConfiguration, 400},
		{"InvalidAmount", ErrInvalidAmount(), "CFG_003", KindInvalidConfiguration, 400},
		{"DuplicateRarityLevel", ErrDuplicateRarityLevel(2), "CFG_004", KindInvalidConfiguration, 400},
		{"ValueOverflow", ErrValueOverflow(), "CFG_005", KindInvalidConfiguration, 422},
		{"SeriesNotFound", ErrSeriesNotFound("AA"), "ISS_001", KindNotFound, 404},
		{"SeriesNotActive", ErrSeriesNotActive("AA"), "ISS_002", KindNotActive, 409},
		{"SeriesNotStarted", ErrSeriesNotStarted("AA"), "ISS_003", KindNotStarted, 409},
		{"SeriesEnded", ErrSeriesEnded("AA"), "ISS_004", KindEnded, 409},
		{"SeriesCapacity", ErrSeriesCapacityExceeded("AA"), "ISS_005", KindCapacityExceeded, 409},
		{"DenominationNotFound", ErrDenominationNotFound(1), "ISS_006", KindNotFound, 404},
		{"DenominationNotActive", ErrDenominationNotActive(1), "ISS_007", KindNotActive, 409},
		{"RarityNotFound", ErrRarityNotFound(3), "ISS_008", KindNotFound, 404},
		{"RewardTierNotFound", ErrRewardTierNotFound(7), "RWD_001", KindNotFound, 404},
		{"RewardSupplyExceeded", ErrRewardSupplyExceeded(1), "RWD_002", KindCapacityExceeded, 409},
		{"Unsatisfiable", ErrUnsatisfiable(30), "RWD_003", KindUnsatisfiable, 422},
		{"RewardsDisabled", ErrRewardsDisabled(), "RWD_004", KindNotActive, 409},
		{"NoteNotFound", ErrNoteNotFound(9), "RDM_001", KindNotFound, 404},
		{"NotHolder", ErrNotHolder(), "RDM_002", KindUnauthorized, 403},
		{"UntrustedGranter", ErrUntrustedGranter(), "RDM_004", KindUnauthorized, 403},
		{"InvalidSignature", ErrInvalidSignature(), "SEC_002", KindUnauthorized, 401},
		{"NonceUsed", ErrNonceUsed(), "SEC_004", KindUnauthorized, 403},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", KindCapacityExceeded, 429},
		{"PayloadTooLarge", ErrPayloadTooLarge(1024), "RATE_002", KindCapacityExceeded, 413},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestSettlementFailed_WrapsCause(t *testing.T) {
	inner := fmt.Errorf("asset mint reverted")
	err := ErrSettlementFailed("abc", inner)

	assert.Equal(t, "RDM_003", err.Code)
	assert.Equal(t, KindSettlement, err.Kind)
	assert.Contains(t, err.Message, "abc")
	assert.True(t, errors.Is(err, inner))
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	colErr := ErrCollaborator("ownership registry", inner)
	assert.Equal(t, "SYS_002", colErr.Code)
	assert.Equal(t, 502, colErr.HTTPStatus)
	assert.Contains(t, colErr.Message, "ownership registry")
}
