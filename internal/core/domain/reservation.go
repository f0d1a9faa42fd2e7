package domain

import "time"

// WalletReservation records which session currently owns a sender wallet.
type WalletReservation struct {
	Wallet     string    `json:"wallet"`
	SessionID  string    `json:"session_id"`
	ReservedAt time.Time `json:"reserved_at"`
}

// Expired reports whether the reservation is older than ttl at now.
func (r WalletReservation) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(r.ReservedAt) > ttl
}
