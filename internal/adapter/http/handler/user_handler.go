package handler

import (
	"strconv"

	"token-launch-gateway/internal/adapter/http/dto"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/pkg/apperror"
	"token-launch-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler manages referral program accounts.
type UserHandler struct {
	referrals ports.ReferralService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(referrals ports.ReferralService) *UserHandler {
	return &UserHandler{referrals: referrals}
}

// Register handles POST /api/v1/users. Registering an existing user
// returns the stored account unchanged.
func (h *UserHandler) Register(c *gin.Context) {
	var req dto.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	user, err := h.referrals.Register(c.Request.Context(), req.UserID, req.Username, req.ReferrerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToUserResponse(user))
}

// Get handles GET /api/v1/users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	user, err := h.referrals.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToUserResponse(user))
}

// SetPayoutWallet handles PUT /api/v1/users/:id/payout-wallet.
func (h *UserHandler) SetPayoutWallet(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	var req dto.PayoutWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.referrals.SetPayoutWallet(c.Request.Context(), userID, req.Wallet); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"user_id": userID, "payout_wallet": req.Wallet})
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, apperror.Validation("invalid user id"))
		return 0, false
	}
	return id, true
}
