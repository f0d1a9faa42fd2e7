package domain

import (
	"time"
)

// TxState is the persisted lifecycle state of an observed payment.
type TxState string

const (
	TxStateNew       TxState = "new"
	TxStateInProcess TxState = "in_process"
	TxStateCreated   TxState = "created"
)

// Classification is the ledger's view of a signature, including ones it has
// never seen.
type Classification string

const (
	ClassUnknown   Classification = "unknown"
	ClassNew       Classification = "new"
	ClassInProcess Classification = "in_process"
	ClassCreated   Classification = "created"
)

// ClassOf maps a stored state to its classification.
func ClassOf(s TxState) Classification {
	switch s {
	case TxStateNew:
		return ClassNew
	case TxStateInProcess:
		return ClassInProcess
	case TxStateCreated:
		return ClassCreated
	}
	return ClassUnknown
}

// Mintable reports whether a payment in this class may start a mint.
func (c Classification) Mintable() bool {
	return c == ClassUnknown || c == ClassNew
}

// Transfer is a native SOL transfer observed on chain.
type Transfer struct {
	Signature string    `json:"signature"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Amount    Lamports  `json:"amount"`
	BlockTime time.Time `json:"block_time"`
}

// MintResult holds the on-chain identifiers produced by a successful mint.
type MintResult struct {
	TokenAddress    string `json:"token_address"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	TotalSupply     uint64 `json:"total_supply"`
	UserTokenAmount uint64 `json:"user_token_amount"`
	MetadataURI     string `json:"metadata_uri"`
	Network         string `json:"network"`
}

// TransactionRecord is the ledger entry for one payment signature.
type TransactionRecord struct {
	Signature string         `json:"signature"`
	Sender    string         `json:"sender"`
	Receiver  string         `json:"receiver"`
	Amount    Lamports       `json:"amount"`
	BlockTime time.Time      `json:"block_time"`
	State     TxState        `json:"state"`
	Attempts  int            `json:"attempts"`
	Snapshot  *DraftSnapshot `json:"snapshot,omitempty"`
	Result    *MintResult    `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsTerminal returns true once a token has been created for the payment.
func (r *TransactionRecord) IsTerminal() bool {
	return r.State == TxStateCreated
}

// NewTransactionRecord builds a fresh ledger entry for an observed transfer.
func NewTransactionRecord(t Transfer, now time.Time) *TransactionRecord {
	return &TransactionRecord{
		Signature: t.Signature,
		Sender:    t.Sender,
		Receiver:  t.Receiver,
		Amount:    t.Amount,
		BlockTime: t.BlockTime,
		State:     TxStateNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanTransition reports whether the ledger allows moving from one state to
// another. The only backward edge is the retry edge in_process -> new.
func CanTransition(from, to TxState) bool {
	switch {
	case from == TxStateNew && to == TxStateInProcess:
		return true
	case from == TxStateInProcess && to == TxStateCreated:
		return true
	case from == TxStateInProcess && to == TxStateNew:
		return true
	}
	return false
}

// TxFilter narrows ledger listings.
type TxFilter struct {
	Sender string
	State  TxState
	Limit  int
}

// Apply moves the record to state to, writing snapshot and result when set.
// Entering in_process counts an attempt. The caller checks CanTransition.
func (r *TransactionRecord) Apply(to TxState, snapshot *DraftSnapshot, result *MintResult, at time.Time) {
	r.State = to
	if to == TxStateInProcess {
		r.Attempts++
	}
	if snapshot != nil {
		r.Snapshot = snapshot
	}
	if result != nil {
		r.Result = result
	}
	r.UpdatedAt = at
}
