package models

// Admin moderation actions
const (
	AdminActionBan     = "ban"
	AdminActionUnban   = "unban"
	AdminActionPromote = "promote"
	AdminActionDemote  = "demote"
)

// AdminActionRequest carries an optional reason shown to the affected user
type AdminActionRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}
