package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/abdshekho/msa-sub001/internal/domain"
)

const userColumns = `id, email, password_hash, name, image, role, provider, provider_subject, created_at, updated_at`

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var passwordHash sql.NullString
	if err := row.Scan(
		&u.ID, &u.Email, &passwordHash, &u.Name, &u.Image, &u.Role, &u.Provider, &u.ProviderSubject,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.PasswordHash = passwordHash.String
	return &u, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO storefront.users (email, password_hash, name, image, role, provider, provider_subject)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns + `;`
	created, err := scanUser(s.db.QueryRowContext(ctx, query,
		domain.NormalizeEmail(user.Email), nullIfEmpty(user.PasswordHash), user.Name, user.Image,
		string(user.Role), user.Provider, user.ProviderSubject,
	))
	if err != nil {
		if constraint, ok := pqConstraintError(err, pqUniqueViolation); ok {
			if constraint == "users_provider_subject_key" {
				return nil, ErrProviderIdentityExists
			}
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("store: CreateUser failed to scan row: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) getUserBy(ctx context.Context, op, where string, args ...interface{}) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM storefront.users WHERE ` + where + `;`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: %s failed to scan row: %w", op, err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUserBy(ctx, "GetUserByID", "id = $1", id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUserBy(ctx, "GetUserByEmail", "email = $1", domain.NormalizeEmail(email))
}

func (s *PostgresStore) GetUserByProvider(ctx context.Context, provider, subject string) (*domain.User, error) {
	return s.getUserBy(ctx, "GetUserByProvider", "provider = $1 AND provider_subject = $2", provider, subject)
}

// LinkProvider attaches a federated identity to an existing account.
func (s *PostgresStore) LinkProvider(ctx context.Context, userID, provider, subject string) (*domain.User, error) {
	query := `
		UPDATE storefront.users
		SET provider = $1, provider_subject = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING ` + userColumns + `;`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, provider, subject, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if _, ok := pqConstraintError(err, pqUniqueViolation); ok {
			return nil, ErrProviderIdentityExists
		}
		return nil, fmt.Errorf("store: LinkProvider failed to scan row: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id, name string, image *string) (*domain.User, error) {
	query := `
		UPDATE storefront.users
		SET name = $1, image = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		RETURNING ` + userColumns + `;`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, name, image, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: UpdateProfile failed to scan row: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	query := `
		UPDATE storefront.users
		SET role = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING ` + userColumns + `;`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, string(role), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: UpdateRole failed to scan row: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, int, error) {
	var totalCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM storefront.users;`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListUsers failed to count users: %w", err)
	}
	if totalCount == 0 {
		return []domain.User{}, 0, nil
	}

	limitClause, limitArgs := paginate(limit, offset, 1)
	query := `SELECT ` + userColumns + ` FROM storefront.users ORDER BY created_at DESC` + limitClause
	rows, err := s.db.QueryContext(ctx, query, limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListUsers failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListUsers failed to scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListUsers iteration error: %w", err)
	}
	return users, totalCount, nil
}
