package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func validDraft() DraftRequest {
	return DraftRequest{
		SessionID:    "chat-42",
		UserID:       100,
		Name:         "Moon Cat",
		Symbol:       "MCAT",
		Supply:       1_000_000,
		LogoRef:      "https://example.com/cat.png",
		SenderWallet: testWallet,
		CustomSuffix: "pump",
	}
}

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := LoginRequest{Username: "  alice  ", Password: "  pass1234  "}
	SanitizeStruct(&req)

	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "pass1234", req.Password)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RegisterUserRequest{UserID: 1, Username: "<script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Username, "&lt;script&gt;")
	assert.NotContains(t, req.Username, "<script>")
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := RegisterUserRequest{UserID: 1, Username: "carol"}
	SanitizeStruct(&req)
	assert.Nil(t, req.ReferrerID)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{"chat-001", "CHAT_002", "a.b.c", "simple123"}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"chat 001",  // space
		"chat<001>", // angle brackets
		"chat;DROP", // semicolon
		"",          // empty
		"chat\n001", // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestDraftRequest_Validation(t *testing.T) {
	require.NoError(t, binding.Validator.ValidateStruct(validDraft()))

	tests := []struct {
		name   string
		mutate func(r *DraftRequest)
	}{
		{"bad wallet", func(r *DraftRequest) { r.SenderWallet = "not-a-wallet" }},
		{"suffix outside base58", func(r *DraftRequest) { r.CustomSuffix = "p0mp" }},
		{"long symbol", func(r *DraftRequest) { r.Symbol = "ABCDEFGHIJK" }},
		{"zero supply", func(r *DraftRequest) { r.Supply = 0 }},
		{"unsafe session id", func(r *DraftRequest) { r.SessionID = "a b" }},
		{"unknown logo kind", func(r *DraftRequest) { r.LogoKind = "ftp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validDraft()
			tt.mutate(&r)
			assert.Error(t, binding.Validator.ValidateStruct(r))
		})
	}
}

func TestDraftRequest_ToDomain(t *testing.T) {
	d := validDraft().ToDomain()
	assert.Equal(t, "chat-42", d.SessionID)
	assert.Equal(t, "MCAT", d.Token.Symbol)
	assert.Equal(t, uint64(1_000_000), d.Token.Supply)
	assert.Equal(t, testWallet, d.SenderWallet)
	assert.Equal(t, "pump", d.CustomSuffix)
}

func TestPayoutWalletRequest_Validation(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(PayoutWalletRequest{Wallet: testWallet}))
	assert.Error(t, binding.Validator.ValidateStruct(PayoutWalletRequest{Wallet: "abc"}))
}
