package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prepwise/partner-server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	SetPasswordHash(ctx context.Context, id, passwordHash string) error
	// GrantFirstEnrollmentBonus adds seconds and flips the first-enrollment flag
	// in one statement. Returns nil when the flag was already set.
	GrantFirstEnrollmentBonus(ctx context.Context, id string, seconds int) (*model.User, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepo struct {
	db sqlxDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (email, firstname, lastname, account_type, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING *
	`, params.Email, params.Firstname, params.Lastname, params.AccountType)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			password_hash = $2,
			updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now())
	return err
}

func (r *userRepo) GrantFirstEnrollmentBonus(ctx context.Context, id string, seconds int) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		UPDATE users SET
			practice_seconds = practice_seconds + $2,
			first_enrollment_rewarded = TRUE,
			updated_at = $3
		WHERE id = $1 AND first_enrollment_rewarded = FALSE
		RETURNING *
	`, id, seconds, time.Now())
	return HandleNotFound(&user, err)
}
