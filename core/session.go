package core

import "time"

// Session references one remote conversation tracked by the session store.
// The ID is the opaque conversation identifier issued by the remote service.
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// IdleFor reports how long the session has been idle as of now.
func (s Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastUsedAt)
}
