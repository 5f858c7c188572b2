package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kaiser100010/grc-system-sub002/internal/apperr"
	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/repository"
)

type UserRepo struct{ db DB }

func NewUserRepo(db DB) repository.UserRepository { return &UserRepo{db: db} }

const userCols = `id, email, first_name, last_name, role, is_active, email_verified, last_login, created_at, updated_at`

func scanUser(row pgx.Row, extra ...any) (*models.User, error) {
	var u models.User
	dest := []any{&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.IsActive,
		&u.EmailVerified, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create stores a new user; the email is stored lower-cased.
func (r *UserRepo) Create(ctx context.Context, in models.NewUser) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+userCols,
		uuid.NewString(), strings.ToLower(strings.TrimSpace(in.Email)), in.PasswordHash,
		in.FirstName, in.LastName, in.Role))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, translate(err, nil)
	}
	return u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		SELECT `+userCols+`
		FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, translate(err, apperr.NotFound("user not found"))
	}
	return u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		SELECT `+userCols+`
		FROM users WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err, apperr.NotFound("user not found"))
	}
	return u, nil
}

// Credentials is the only read that returns the password hash.
func (r *UserRepo) Credentials(ctx context.Context, email string) (*models.User, string, error) {
	var hash string
	u, err := scanUser(r.db.QueryRow(ctx, `
		SELECT `+userCols+`, password_hash
		FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(email))), &hash)
	if err != nil {
		return nil, "", translate(err, apperr.NotFound("user not found"))
	}
	return u, hash, nil
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET last_login=$1 WHERE id=$2`, at.UTC(), id)
	if err != nil {
		return translate(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, translate(err, nil)
	}
	return n, nil
}
