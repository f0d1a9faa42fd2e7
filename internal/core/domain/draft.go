package domain

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Draft field limits.
const (
	MaxNameBytes        = 32
	MaxSymbolBytes      = 10
	MaxDescriptionBytes = 500
	MinSupply           = 1
	MaxSupply           = 10_000_000_000
)

// Base58Alphabet is the character set of Solana addresses.
const Base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// LogoKind tells how a logo reference must be resolved.
type LogoKind string

const (
	LogoKindURL  LogoKind = "url"
	LogoKindFile LogoKind = "file" // local file owned by the session, removed after the mint
)

// TokenMetadata is the user-supplied description of the token to mint.
type TokenMetadata struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Supply      uint64   `json:"supply"`
	LogoRef     string   `json:"logo_ref"`
	LogoKind    LogoKind `json:"logo_kind"`
	Description string   `json:"description"`
}

// Draft accumulates everything a session needs before payment.
type Draft struct {
	SessionID    string        `json:"session_id"`
	UserID       int64         `json:"user_id"`
	Username     string        `json:"username,omitempty"`
	Token        TokenMetadata `json:"token"`
	SenderWallet string        `json:"sender_wallet"`
	CustomSuffix string        `json:"custom_suffix,omitempty"`
	UseBonus     bool          `json:"use_bonus"`
}

// FieldError reports one invalid draft field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// SuffixLength returns the length of the requested vanity ending, 0 if none.
func (d *Draft) SuffixLength() int {
	return len(d.CustomSuffix)
}

// Normalize trims the free-text fields, upper-cases the symbol and fills
// the default description.
func (d *Draft) Normalize() {
	d.Token.Name = strings.TrimSpace(d.Token.Name)
	d.Token.Symbol = strings.ToUpper(strings.TrimSpace(d.Token.Symbol))
	d.Token.Description = strings.TrimSpace(d.Token.Description)
	d.Token.LogoRef = strings.TrimSpace(d.Token.LogoRef)
	d.SenderWallet = strings.TrimSpace(d.SenderWallet)
	d.CustomSuffix = strings.TrimSpace(d.CustomSuffix)
	if d.Token.Description == "" && d.Token.Name != "" {
		d.Token.Description = d.Token.Name + " Meme Coin"
	}
	if d.Token.LogoKind == "" {
		d.Token.LogoKind = LogoKindURL
	}
}

// Validate checks every field and returns the first *FieldError found.
func (d *Draft) Validate() error {
	t := d.Token
	switch {
	case d.SessionID == "":
		return &FieldError{"session_id", "required"}
	case t.Name == "":
		return &FieldError{"name", "required"}
	case len(t.Name) > MaxNameBytes:
		return &FieldError{"name", fmt.Sprintf("must be at most %d bytes", MaxNameBytes)}
	case t.Symbol == "":
		return &FieldError{"symbol", "required"}
	case len(t.Symbol) > MaxSymbolBytes:
		return &FieldError{"symbol", fmt.Sprintf("must be at most %d bytes", MaxSymbolBytes)}
	case t.Supply < MinSupply || t.Supply > MaxSupply:
		return &FieldError{"supply", fmt.Sprintf("must be between %d and %d", MinSupply, uint64(MaxSupply))}
	case len(t.Description) > MaxDescriptionBytes:
		return &FieldError{"description", fmt.Sprintf("must be at most %d bytes", MaxDescriptionBytes)}
	case t.LogoRef == "":
		return &FieldError{"logo_ref", "required"}
	case t.LogoKind != LogoKindURL && t.LogoKind != LogoKindFile:
		return &FieldError{"logo_kind", "must be url or file"}
	}
	if err := ValidateWallet(d.SenderWallet); err != nil {
		return &FieldError{"sender_wallet", err.Error()}
	}
	if d.CustomSuffix != "" && !IsBase58(d.CustomSuffix) {
		return &FieldError{"custom_suffix", "must use base58 characters"}
	}
	if d.UseBonus && d.CustomSuffix == "" {
		return &FieldError{"use_bonus", "requires a custom suffix"}
	}
	return nil
}

// ValidateWallet checks that s decodes to a 32-byte Solana public key.
func ValidateWallet(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}
	if _, err := solana.PublicKeyFromBase58(s); err != nil {
		return fmt.Errorf("not a valid Solana address")
	}
	return nil
}

// IsBase58 reports whether s consists only of base58 characters.
func IsBase58(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(Base58Alphabet, r) {
			return false
		}
	}
	return true
}
