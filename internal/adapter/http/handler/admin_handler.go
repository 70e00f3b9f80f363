package handler

import (
	"context"
	"errors"
	"time"

	"note-issuance-engine/internal/adapter/http/dto"
	"note-issuance-engine/internal/adapter/http/middleware"
	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"
	"note-issuance-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errNotConfigured = errors.New("not configured")

// ReserveFunder credits and reads the settlement reserve account.
type ReserveFunder interface {
	Deposit(ctx context.Context, account string, amount int64) error
	BalanceOf(ctx context.Context, account string) (int64, error)
}

// AdminHandler serves the operator surface: configuration, issuance,
// settlement recovery and reporting.
type AdminHandler struct {
	config         ports.ConfigService
	issuance       ports.IssuanceService
	redemption     ports.RedemptionService
	reporting      ports.ReportingService
	tokens         ports.TokenService
	reserve        ReserveFunder
	reserveAccount string
}

// AdminDeps groups the collaborators of AdminHandler.
type AdminDeps struct {
	Config         ports.ConfigService
	Issuance       ports.IssuanceService
	Redemption     ports.RedemptionService
	Reporting      ports.ReportingService
	Tokens         ports.TokenService
	Reserve        ReserveFunder
	ReserveAccount string
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	return &AdminHandler{
		config:         deps.Config,
		issuance:       deps.Issuance,
		redemption:     deps.Redemption,
		reporting:      deps.Reporting,
		tokens:         deps.Tokens,
		reserve:        deps.Reserve,
		reserveAccount: deps.ReserveAccount,
	}
}

// SetSeries handles PUT /api/v1/admin/series/:series_id.
func (h *AdminHandler) SetSeries(c *gin.Context) {
	var uri dto.SeriesURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	var req dto.SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	series, err := h.config.SetSeries(c.Request.Context(), domain.Series{
		ID:        uri.SeriesID,
		Name:      req.Name,
		BasePath:  req.BasePath,
		MaxSupply: req.MaxSupply,
		StartTime: derefTime(req.StartTime),
		EndTime:   derefTime(req.EndTime),
		Active:    req.Active,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, series)
}

// SetDenomination handles PUT /api/v1/admin/denominations/:id.
func (h *AdminHandler) SetDenomination(c *gin.Context) {
	var uri dto.DenominationURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	var req dto.DenominationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	denom, err := h.config.SetDenomination(c.Request.Context(), domain.Denomination{
		ID:           uri.ID,
		Name:         req.Name,
		Value:        req.Value,
		MediaPath:    req.MediaPath,
		SerialOffset: req.SerialOffset,
		Active:       req.Active,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, denom)
}

// SetRarityTiers handles PUT /api/v1/admin/rarity, replacing the whole set.
func (h *AdminHandler) SetRarityTiers(c *gin.Context) {
	var req dto.RarityTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	tiers := make([]domain.RarityTier, len(req.Tiers))
	for i, t := range req.Tiers {
		dto.SanitizeStruct(&t)
		tiers[i] = domain.RarityTier{Level: t.Level, Name: t.Name, WeightBps: t.WeightBps, BonusBps: t.BonusBps}
	}

	if err := h.config.SetRarityTiers(c.Request.Context(), tiers); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tiers)
}

// SetRarityTier handles PUT /api/v1/admin/rarity/:level.
func (h *AdminHandler) SetRarityTier(c *gin.Context) {
	var uri dto.RarityLevelURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	var req dto.RarityTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	tier := domain.RarityTier{Level: uri.Level, Name: req.Name, WeightBps: req.WeightBps, BonusBps: req.BonusBps}
	if err := h.config.SetRarityTier(c.Request.Context(), tier); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tier)
}

// SetRewardTiers handles PUT /api/v1/admin/reward-tiers.
func (h *AdminHandler) SetRewardTiers(c *gin.Context) {
	var req dto.RewardTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.config.SetRewardTiers(c.Request.Context(), req.IDs, req.Values); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// SetRewardTier handles PUT /api/v1/admin/reward-tiers/:id.
func (h *AdminHandler) SetRewardTier(c *gin.Context) {
	var uri dto.RewardTierURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	var req dto.RewardTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	tier := domain.RewardTier{ID: uri.ID, Value: req.Value}
	if err := h.config.SetRewardTier(c.Request.Context(), tier); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tier)
}

// SetRewardSupply handles PUT /api/v1/admin/reward-supply/:id.
func (h *AdminHandler) SetRewardSupply(c *gin.Context) {
	var uri dto.DenominationURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	var req dto.RewardSupplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.config.SetRewardSupplyLimit(c.Request.Context(), uri.ID, req.Limit); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, domain.RewardSupply{DenominationID: uri.ID, Limit: req.Limit})
}

// SetRewardSettings handles PUT /api/v1/admin/reward-settings.
func (h *AdminHandler) SetRewardSettings(c *gin.Context) {
	var req dto.RewardSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.DefaultSeriesID == nil && req.Enabled == nil {
		response.Error(c, apperror.Validation("nothing to update"))
		return
	}
	ctx := c.Request.Context()

	if req.DefaultSeriesID != nil {
		if err := h.config.SetDefaultRewardSeries(ctx, *req.DefaultSeriesID); err != nil {
			response.Error(c, err)
			return
		}
	}
	if req.Enabled != nil {
		if err := h.config.SetRewardEnabled(ctx, *req.Enabled); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.OK(c, req)
}

// ResetSerial handles PUT /api/v1/admin/serials.
func (h *AdminHandler) ResetSerial(c *gin.Context) {
	var req dto.SerialResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	key := domain.SerialKey{SeriesID: req.SeriesID, DenominationID: req.DenominationID}
	if err := h.config.ResetSerialCounter(c.Request.Context(), key, req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// CorrectNote handles PUT /api/v1/admin/notes/:token_id/rarity.
func (h *AdminHandler) CorrectNote(c *gin.Context) {
	var uri dto.TokenURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	var req dto.CorrectNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	note, err := h.config.CorrectNote(c.Request.Context(), uri.TokenID, req.Rarity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, note)
}

// Issue handles POST /api/v1/admin/issue.
func (h *AdminHandler) Issue(c *gin.Context) {
	var req dto.IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	in := ports.IssueRequest{
		To:             req.To,
		DenominationID: req.DenominationID,
		SeriesID:       req.SeriesID,
		Caller:         caller(c),
	}

	var (
		note *domain.Note
		err  error
	)
	if req.Rarity != nil {
		note, err = h.issuance.IssueWithRarity(c.Request.Context(), in, *req.Rarity)
	} else {
		note, err = h.issuance.Issue(c.Request.Context(), in)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, note)
}

// IssueBatch handles POST /api/v1/admin/issue/batch.
func (h *AdminHandler) IssueBatch(c *gin.Context) {
	var req dto.IssueBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	notes, err := h.issuance.IssueBatch(c.Request.Context(), ports.IssueRequest{
		To:             req.To,
		DenominationID: req.DenominationID,
		SeriesID:       req.SeriesID,
		Caller:         caller(c),
	}, req.Count)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, notes)
}

// ListSettlements handles GET /api/v1/admin/settlements.
func (h *AdminHandler) ListSettlements(c *gin.Context) {
	var q dto.SettlementListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	status := domain.SettlementStatusFailed
	if q.Status != "" {
		status = domain.SettlementStatus(q.Status)
	}

	list, err := h.redemption.ListSettlements(c.Request.Context(), status, q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// RetrySettlement handles POST /api/v1/admin/settlements/:id/retry.
func (h *AdminHandler) RetrySettlement(c *gin.Context) {
	var uri dto.SettlementURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid settlement id"))
		return
	}

	st, err := h.redemption.RetrySettlement(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, st)
}

// Deposit handles POST /api/v1/admin/reserve/deposit.
func (h *AdminHandler) Deposit(c *gin.Context) {
	if h.reserve == nil {
		response.Error(c, apperror.ErrCollaborator("reserve ledger", errNotConfigured))
		return
	}
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	ctx := c.Request.Context()

	if err := h.reserve.Deposit(ctx, h.reserveAccount, req.Amount); err != nil {
		response.Error(c, apperror.ErrCollaborator("reserve ledger", err))
		return
	}
	balance, err := h.reserve.BalanceOf(ctx, h.reserveAccount)
	if err != nil {
		response.Error(c, apperror.ErrCollaborator("reserve ledger", err))
		return
	}
	response.Created(c, dto.DepositResponse{Account: h.reserveAccount, Balance: balance})
}

// Report handles GET /api/v1/admin/report.
func (h *AdminHandler) Report(c *gin.Context) {
	report, err := h.reporting.SupplyReport(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// HolderToken handles POST /api/v1/admin/holder-tokens.
func (h *AdminHandler) HolderToken(c *gin.Context) {
	var req dto.HolderTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	token, expiry, err := h.tokens.Generate(req.Account)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.Created(c, dto.HolderTokenResponse{Token: token, Expiry: expiry.Unix()})
}

// caller returns the authenticated account mixed into replayable entropy.
func caller(c *gin.Context) string {
	account, _ := middleware.Account(c)
	return account
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
