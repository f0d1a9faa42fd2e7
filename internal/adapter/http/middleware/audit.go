package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful operator writes.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType, resourceID := mapPathToAction(c.Request.URL.Path, c.Request.Method)
		if action == "" {
			return
		}

		operator := c.GetString(CtxOperator)
		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Operator:     operator,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

const adminPrefix = "/api/v1/admin/"

func mapPathToAction(path, method string) (domain.AuditAction, string, string) {
	if !strings.HasPrefix(path, adminPrefix) {
		return "", "", ""
	}
	parts := strings.Split(strings.TrimPrefix(path, adminPrefix), "/")
	switch {
	case method == http.MethodPost && len(parts) == 1 && parts[0] == "login":
		return domain.AuditActionLogin, "operator", ""
	case method == http.MethodPost && len(parts) == 2 && parts[0] == "reservations" && parts[1] == "sweep":
		return domain.AuditActionSweep, "reservation", ""
	case method == http.MethodDelete && len(parts) == 2 && parts[0] == "reservations":
		return domain.AuditActionRelease, "reservation", parts[1]
	case method == http.MethodPost && len(parts) == 3 && parts[0] == "transactions" && parts[2] == "reset":
		return domain.AuditActionResetTx, "transaction", parts[1]
	}
	return "", "", ""
}
