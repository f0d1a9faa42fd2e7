package handler

import (
	"token-launch-gateway/internal/adapter/http/dto"
	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/pkg/apperror"
	"token-launch-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionHandler serves the chat front-end's workflow calls.
type SessionHandler struct {
	workflow ports.WorkflowService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(workflow ports.WorkflowService) *SessionHandler {
	return &SessionHandler{workflow: workflow}
}

// Create handles POST /api/v1/sessions. It prices the draft and reserves
// the sender wallet.
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sess, err := h.workflow.OnDraftReady(c.Request.Context(), req.ToDomain())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToSessionResponse(sess))
}

// Get handles GET /api/v1/sessions/:id.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.workflow.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToSessionResponse(sess))
}

// CheckPayment handles POST /api/v1/sessions/:id/payment-check. A matched
// payment answers 202 while the token is created in the background.
func (h *SessionHandler) CheckPayment(c *gin.Context) {
	out, err := h.workflow.OnPaymentCheckRequested(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if out.Result == domain.CheckStarted {
		response.Accepted(c, dto.ToCheckResponse(out))
		return
	}
	response.OK(c, dto.ToCheckResponse(out))
}

// Cancel handles DELETE /api/v1/sessions/:id.
func (h *SessionHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.workflow.Cancel(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": id, "status": domain.SessionCancelled})
}
