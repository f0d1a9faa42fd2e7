package domain

import "time"

// SessionStatus is the workflow position of a chat session.
type SessionStatus string

const (
	SessionWaitingPayment SessionStatus = "waiting_payment"
	SessionCreating       SessionStatus = "creating"
	SessionCompleted      SessionStatus = "completed"
	SessionCancelled      SessionStatus = "cancelled"
)

// Session is a draft that has been priced and holds its wallet reservation.
type Session struct {
	ID        string        `json:"id"`
	Draft     Draft         `json:"draft"`
	Quote     Quote         `json:"quote"`
	Status    SessionStatus `json:"status"`
	Signature string        `json:"signature,omitempty"`
	Receiver  string        `json:"receiver"`   // address the payment goes to
	ExpiresAt time.Time     `json:"expires_at"` // reservation expiry
	CreatedAt time.Time     `json:"created_at"`
}

// CheckResult is the outcome of one payment check.
type CheckResult string

const (
	CheckNotFound        CheckResult = "not_found"
	CheckAlreadyUsed     CheckResult = "already_used"
	CheckInProcess       CheckResult = "in_process"
	CheckStarted         CheckResult = "started"
	CheckAlreadyChecking CheckResult = "check_in_progress"
	CheckCreating        CheckResult = "creating"
)

// CheckOutcome is returned to the front-end after a payment check.
type CheckOutcome struct {
	SessionID string      `json:"session_id"`
	Result    CheckResult `json:"result"`
	Transfer  *Transfer   `json:"transfer,omitempty"`
	Expected  Quote       `json:"expected"`
}
