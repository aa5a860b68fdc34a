package circle

import "time"

// Status is the admin-controlled access state of an account.
// New sign-ups start as pending and stay locked out of every
// messaging view until an admin approves them.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusBanned   Status = "banned"
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusBanned:
		return true
	}
	return false
}

// Account is a member profile. Status transitions are performed only by
// the admin roster; profile fields belong to the owning user.
type Account struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	AvatarURL   *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Status      Status    `db:"status" json:"status"`
	IsAdmin     bool      `db:"is_admin" json:"is_admin"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
