package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited operator action.
type AuditAction string

const (
	AuditActionLogin   AuditAction = "LOGIN"
	AuditActionSweep   AuditAction = "SWEEP_RESERVATIONS"
	AuditActionRelease AuditAction = "RELEASE_RESERVATION"
	AuditActionResetTx AuditAction = "RESET_TRANSACTION"
)

// AuditLog records a single operator action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Operator     string      `json:"operator,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
