package model

type AccountType string

const (
	AccountTypeCandidate AccountType = "candidate"
	AccountTypePartner   AccountType = "partner"
	AccountTypeAdmin     AccountType = "admin"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusExpired  InviteStatus = "expired"
)

// CanAccept reports whether an invitation in this state may move to accepted.
func (s InviteStatus) CanAccept() bool {
	return s == InviteStatusPending
}

type NotificationType string

const (
	NotificationFirstEnrollmentBonus NotificationType = "first_enrollment_bonus"
)
