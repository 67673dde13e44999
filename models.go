package aaa

import "time"

// User is an identity record. Users are keyed by username in the store and
// mutated only through the engine.
type User struct {
	Username     string         `json:"username"`
	Role         string         `json:"role"`
	PasswordHash string         `json:"hash"`
	EmailAddress string         `json:"email_addr,omitempty"`
	Company      string         `json:"company"`
	Permissions  map[string]any `json:"perm,omitempty"`
	Validated    bool           `json:"validated"`
	CreatedAt    int64          `json:"creation_date"`
}

// Role carries an integer privilege level. 0 is the lowest privilege,
// AdminLevel gates administrative operations, and levels at or above
// CompanyBypassLevel skip company checks entirely.
type Role struct {
	Level int `json:"level"`
}

// PendingRegistration is a not-yet-confirmed signup, keyed in the store by
// its one-time registration code. It is consumed exactly once by
// ValidateRegistration or purged after its expiry window.
type PendingRegistration struct {
	Username     string         `json:"username"`
	Role         string         `json:"role"`
	PasswordHash string         `json:"hash"`
	EmailAddress string         `json:"email_addr"`
	Company      string         `json:"company"`
	Permissions  map[string]any `json:"perm,omitempty"`
	CreatedAt    int64          `json:"creation_date"`
}

// Age returns how long ago the registration was created.
func (p PendingRegistration) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(p.CreatedAt, 0))
}

// AddPermission appends a grant to the user's permission map.
func (u *User) AddPermission(name string, value any) *User {
	if u.Permissions == nil {
		u.Permissions = make(map[string]any)
	}
	u.Permissions[name] = value
	return u
}
