package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/sysgate/internal/domain/repository"
)

// userRepo implementa repository.UserRepository.
type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepo{pool: pool}
}

const userCols = `id, email, password_hash, COALESCE(full_name, ''), email_verified, created_at`

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM app_user WHERE LOWER(email) = LOWER($1) LIMIT 1`, userCols)
	return r.getOne(ctx, query, email)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM app_user WHERE id = $1`, userCols)
	return r.getOne(ctx, query, id)
}

func (r *userRepo) Create(ctx context.Context, email, passwordHash, fullName string) (*repository.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO app_user (email, password_hash, full_name, created_at)
		VALUES (LOWER($1), $2, $3, NOW())
		RETURNING %s`, userCols)

	var u repository.User
	err := r.pool.QueryRow(ctx, query, email, passwordHash, fullName).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.EmailVerified, &u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (r *userRepo) getOne(ctx context.Context, query string, arg any) (*repository.User, error) {
	var u repository.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.EmailVerified, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
