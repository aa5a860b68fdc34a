package circle

import "time"

// Group is a named multi-member conversation.
type Group struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Membership links an account to a group. A group is visible to an
// account iff a membership row exists for the pair.
type Membership struct {
	GroupID   string `db:"group_id" json:"group_id"`
	AccountID string `db:"account_id" json:"account_id"`
}
