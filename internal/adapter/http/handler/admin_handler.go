package handler

import (
	"strconv"
	"time"

	"token-launch-gateway/internal/adapter/http/dto"
	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/pkg/apperror"
	"token-launch-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

// AdminHandler serves operator reporting and interventions.
type AdminHandler struct {
	reporting      ports.ReportingService
	ops            ports.OperationsService
	reservationTTL time.Duration
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reporting ports.ReportingService, ops ports.OperationsService, reservationTTL time.Duration) *AdminHandler {
	return &AdminHandler{reporting: reporting, ops: ops, reservationTTL: reservationTTL}
}

// GetStats handles GET /api/v1/admin/stats.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.reporting.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// ListTransactions handles GET /api/v1/admin/transactions.
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if limit < 1 {
		limit = defaultListLimit
	}

	filter := domain.TxFilter{
		Sender: c.Query("sender"),
		State:  domain.TxState(c.Query("state")),
		Limit:  limit,
	}
	recs, err := h.reporting.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(recs))
	for i := range recs {
		items = append(items, dto.ToTransactionResponse(&recs[i]))
	}
	response.OK(c, dto.TransactionListResponse{Items: items, Count: len(items), Limit: limit})
}

// GetTransaction handles GET /api/v1/admin/transactions/:signature.
func (h *AdminHandler) GetTransaction(c *gin.Context) {
	detail, err := h.reporting.GetTransaction(c.Request.Context(), c.Param("signature"))
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.ToTransactionResponse(&detail.Record)
	resp.Commissions = dto.ToCommissionRecords(detail.Commissions)
	response.OK(c, resp)
}

// ResetTransaction handles POST /api/v1/admin/transactions/:signature/reset.
func (h *AdminHandler) ResetTransaction(c *gin.Context) {
	sig := c.Param("signature")
	if err := h.ops.ResetTransaction(c.Request.Context(), sig); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"signature": sig, "state": domain.TxStateNew})
}

// ListReservations handles GET /api/v1/admin/reservations.
func (h *AdminHandler) ListReservations(c *gin.Context) {
	list, err := h.reporting.ListReservations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	now := time.Now()
	items := make([]dto.ReservationResponse, 0, len(list))
	for _, r := range list {
		items = append(items, dto.ReservationResponse{
			Wallet:     r.Wallet,
			SessionID:  r.SessionID,
			ReservedAt: r.ReservedAt.UTC().Format(time.RFC3339),
			Stale:      r.Expired(now, h.reservationTTL),
		})
	}
	response.OK(c, items)
}

// SweepReservations handles POST /api/v1/admin/reservations/sweep.
func (h *AdminHandler) SweepReservations(c *gin.Context) {
	n, err := h.ops.SweepReservations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.SweepResponse{Released: n})
}

// ReleaseReservation handles DELETE /api/v1/admin/reservations/:wallet.
func (h *AdminHandler) ReleaseReservation(c *gin.Context) {
	wallet := c.Param("wallet")
	if err := domain.ValidateWallet(wallet); err != nil {
		response.Error(c, apperror.Validation("invalid wallet: "+err.Error()))
		return
	}
	ok, err := h.ops.ReleaseReservation(c.Request.Context(), wallet)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ReleaseResponse{Wallet: wallet, Released: ok})
}

// UserStats handles GET /api/v1/admin/users/:id/stats.
func (h *AdminHandler) UserStats(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	stats, err := h.reporting.UserStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}
