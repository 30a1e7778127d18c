package domain

import "time"

type Session struct {
	Token      string    `json:"-"`
	Principal  Principal `json:"principal"`
	ClientIP   string    `json:"client_ip,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Valid se evalua en cada chequeo; nunca se cachea.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
