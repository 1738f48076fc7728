package model

import "time"

// Claim is a student's request to take possession of a found item.
type Claim struct {
	ID           int64      `json:"id"`
	ItemID       *int64     `json:"item_id"`
	ReportID     *int64     `json:"report_id,omitempty"`
	Student      string     `json:"student"`
	Message      string     `json:"message,omitempty"`
	Status       string     `json:"status"`
	Admin        string     `json:"admin,omitempty"`
	DecisionNote string     `json:"decision_note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`

	// Joined fields (not always populated).
	ItemName  string `json:"item_name,omitempty"`
	ItemImage string `json:"item_image,omitempty"`
}

// Claim statuses.
const (
	ClaimStatusPending  = "pending"
	ClaimStatusAccepted = "accepted"
	ClaimStatusRejected = "rejected"
)

// Decision actions.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// DecisionStatus maps a decision action to the resulting claim status.
func DecisionStatus(action string) (string, bool) {
	switch action {
	case ActionAccept:
		return ClaimStatusAccepted, true
	case ActionReject:
		return ClaimStatusRejected, true
	default:
		return "", false
	}
}

// ValidClaimStatus reports whether s is a known claim status.
func ValidClaimStatus(s string) bool {
	return s == ClaimStatusPending || s == ClaimStatusAccepted || s == ClaimStatusRejected
}
