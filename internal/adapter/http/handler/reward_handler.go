package handler

import (
	"note-issuance-engine/internal/adapter/http/dto"
	"note-issuance-engine/internal/adapter/http/middleware"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/internal/service"
	"note-issuance-engine/pkg/apperror"
	"note-issuance-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// RewardHandler serves the granter surface: reward grants and delegated
// redemptions.
type RewardHandler struct {
	rewards    ports.RewardService
	redemption ports.RedemptionService
}

// NewRewardHandler creates a new RewardHandler.
func NewRewardHandler(rewards ports.RewardService, redemption ports.RedemptionService) *RewardHandler {
	return &RewardHandler{rewards: rewards, redemption: redemption}
}

// Grant handles POST /api/v1/rewards/grant.
func (h *RewardHandler) Grant(c *gin.Context) {
	granter, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAccessKey())
		return
	}

	var req dto.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.rewards.GrantReward(c.Request.Context(), ports.GrantRequest{
		Granter:     granter,
		To:          req.To,
		TierID:      req.TierID,
		ReferenceID: req.ReferenceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GrantBatch handles POST /api/v1/rewards/grant/batch.
func (h *RewardHandler) GrantBatch(c *gin.Context) {
	granter, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAccessKey())
		return
	}

	var req dto.GrantBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	results, err := h.rewards.GrantRewardBatch(c.Request.Context(), ports.GrantBatchRequest{
		Granter:    granter,
		Recipients: req.Recipients,
		TierIDs:    req.TierIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, results)
}

// Preview handles GET /api/v1/rewards/tiers/:id/preview.
func (h *RewardHandler) Preview(c *gin.Context) {
	var uri dto.RewardTierURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	plan, err := h.rewards.Preview(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, plan)
}

// Capacity handles GET /api/v1/rewards/tiers/:id/capacity.
func (h *RewardHandler) Capacity(c *gin.Context) {
	var uri dto.RewardTierURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	ctx := c.Request.Context()

	can, err := h.rewards.CanGrant(ctx, uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	remaining, err := h.rewards.RemainingGrants(ctx, uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.CapacityResponse{TierID: uri.ID, CanGrant: can, Remaining: remaining}
	if remaining == service.UnboundedGrants {
		resp.Unbounded = true
		resp.Remaining = -1
	}
	response.OK(c, resp)
}

// RedeemFor handles POST /api/v1/rewards/redeem: a trusted granter
// redeems a note on behalf of its holder.
func (h *RewardHandler) RedeemFor(c *gin.Context) {
	granter, ok := middleware.Account(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAccessKey())
		return
	}

	var req dto.RedeemForRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	st, err := h.redemption.RedeemFor(c.Request.Context(), granter, req.Holder, req.TokenID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, st)
}
