package types

import "time"

// AllowToken is a time-boxed, intent-scoped pre-authorization. A token
// authorizes every command of its intent until it expires; it is never
// consumed or revoked, only outlived.
type AllowToken struct {
	TokenID    string    `json:"token_id"`
	Intent     Intent    `json:"intent"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	TTLSeconds int       `json:"ttl_seconds"`
}

// ValidAt reports whether the token still authorizes its intent at now.
func (t AllowToken) ValidAt(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
