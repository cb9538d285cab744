package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
)

const userColumns = `id, role, name, email, mobile_number, password_hash, teacher_id, department, profile_image_url, profile_image_public_id, created_at, updated_at`

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = $1", email)
}

// FindByMobile returns a user by mobile number.
func (r *UserRepository) FindByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return r.findOne(ctx, "mobile_number = $1", mobile)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindConflict returns another account using email or mobile, ignoring excludeID.
func (r *UserRepository) FindConflict(ctx context.Context, email, mobile, excludeID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE (email = $1 OR mobile_number = $2) AND id <> $3 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email, mobile, excludeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find conflicting user: %w", err)
	}
	return &user, nil
}

// TeacherIDTaken reports whether another account already holds teacherID.
func (r *UserRepository) TeacherIDTaken(ctx context.Context, teacherID, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE teacher_id = $1 AND id <> $2)`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, query, teacherID, excludeID); err != nil {
		return false, fmt.Errorf("check teacher id: %w", err)
	}
	return taken, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, role, name, email, mobile_number, password_hash, teacher_id, department, profile_image_url, profile_image_public_id, created_at, updated_at)
VALUES (:id, :role, :name, :email, :mobile_number, :password_hash, :teacher_id, :department, :profile_image_url, :profile_image_public_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes profile fields and the password hash.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET name = :name, email = :email, mobile_number = :mobile_number, password_hash = :password_hash,
teacher_id = :teacher_id, department = :department, profile_image_url = :profile_image_url,
profile_image_public_id = :profile_image_public_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdatePasswordByEmail replaces the password hash of the account with email.
func (r *UserRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE email = $1`
	res, err := r.db.ExecContext(ctx, query, email, passwordHash, updatedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}
