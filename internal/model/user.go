package model

import (
	"time"
)

// User is any account in the system. Candidates created by partners start
// without a password and activated.
type User struct {
	ID                      string      `db:"id" json:"id"`
	Email                   string      `db:"email" json:"email"`
	PasswordHash            *string     `db:"password_hash" json:"-"`
	Firstname               string      `db:"firstname" json:"firstname"`
	Lastname                string      `db:"lastname" json:"lastname"`
	AccountType             AccountType `db:"account_type" json:"account_type"`
	IsActive                bool        `db:"is_active" json:"is_active"`
	PracticeSeconds         int         `db:"practice_seconds" json:"practice_seconds"`
	FirstEnrollmentRewarded bool        `db:"first_enrollment_rewarded" json:"first_enrollment_rewarded"`
	CreatedAt               time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time   `db:"updated_at" json:"updated_at"`
}

type CreateUserParams struct {
	Email       string
	Firstname   string
	Lastname    string
	AccountType AccountType
}
