package domain

import "time"

// MessageKind classifies a notification sent back to the chat front-end.
type MessageKind string

const (
	MessageProgress          MessageKind = "progress"
	MessageTokenCreated      MessageKind = "token_created"
	MessageCreationFailed    MessageKind = "creation_failed"
	MessageCommissionWarning MessageKind = "commission_warning"
	MessageCommissionPaid    MessageKind = "commission_paid"
)

// Message is one user-visible notification for a session.
type Message struct {
	SessionID string      `json:"session_id"`
	UserID    int64       `json:"user_id,omitempty"`
	Kind      MessageKind `json:"kind"`
	Signature string      `json:"signature,omitempty"`
	Milestone Milestone   `json:"milestone,omitempty"`
	Result    *MintResult `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
