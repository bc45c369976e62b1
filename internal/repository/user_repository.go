package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/civic-incident-reporting/internal/apperr"
	"github.com/iliyamo/civic-incident-reporting/internal/database"
	"github.com/iliyamo/civic-incident-reporting/internal/model"
)

const userColumns = "id,name,email,phone,role,points,password_hash,created_at,updated_at"

// UserRepo mirrors the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail trims and lower-cases an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.Points, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts u and fills in its ID and timestamps. A unique key
// violation on email or phone yields apperr.ErrDuplicateIdentity.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name,email,phone,role,points,password_hash) VALUES (?,?,?,?,?,?)",
		u.Name, u.Email, u.Phone, string(u.Role), u.Points, u.PasswordHash)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("create user: %w", apperr.ErrDuplicateIdentity)
		}
		return fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	now := time.Now().UTC()
	u.ID = uint64(id)
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email)))
	if err != nil {
		return model.User{}, notFound(err, "get user by email")
	}
	return u, nil
}

// GetByPhone fetches a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone=? LIMIT 1", strings.TrimSpace(phone)))
	if err != nil {
		return model.User{}, notFound(err, "get user by phone")
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err != nil {
		return model.User{}, notFound(err, "get user by id")
	}
	return u, nil
}

// UpdatePasswordHash replaces the stored digest.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 when the value is unchanged too, so confirm the row exists.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// AdjustPoints locks the user's row, hands the current balance to fn and
// stores whatever fn returns. Concurrent calls for the same user are
// serialized by the row lock; different users proceed in parallel. When fn
// fails nothing is written.
func (r *UserRepo) AdjustPoints(ctx context.Context, id uint64, fn func(current int64) (int64, error)) (int64, error) {
	var next int64
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var current int64
		if err := tx.QueryRowContext(ctx, "SELECT points FROM users WHERE id=? FOR UPDATE", id).Scan(&current); err != nil {
			return notFound(err, "lock user points")
		}
		n, err := fn(current)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE users SET points=? WHERE id=?", n, id); err != nil {
			return fmt.Errorf("update points: %w", err)
		}
		next = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Leaderboard returns the top users by points, highest first.
func (r *UserRepo) Leaderboard(ctx context.Context, limit int) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY points DESC, id ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("leaderboard scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// HasAdmin reports whether any admin account exists.
func (r *UserRepo) HasAdmin(ctx context.Context) (bool, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE role=?", string(model.RoleAdmin)).Scan(&n); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return n > 0, nil
}
