package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"media_tracker/internal/models"
	"media_tracker/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresRepo struct {
	db DB
}

const (
	userColumns  = `id, email, name, password_hash, is_verified, verification_token, created_at`
	mediaColumns = `id, user_id, title, type, status, current_count, total_count, created_at, updated_at`
)

func New(ctx context.Context, dsn, dbName string) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	if poolConfig.ConnConfig.Database == "" {
		poolConfig.ConnConfig.Database = dbName
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to apply migrations: %w", op, err)
	}

	return NewWithDB(pool), nil
}

func NewWithDB(db DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return goose.UpContext(ctx, db, "migrations")
}

func (r *PostgresRepo) SaveUser(ctx context.Context, u models.User) error {
	const op = "storage.postgres.SaveUser"

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`

	_, err := r.db.Exec(ctx, query,
		u.ID, u.Email, u.Name, u.PassHash, u.IsVerified, u.VerificationToken, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.User"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1;`

	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1;`

	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// SetEmailVerified marks the owner of token as verified and clears the token in one
// statement, so a token can be consumed at most once.
func (r *PostgresRepo) SetEmailVerified(ctx context.Context, token string) (models.User, error) {
	const op = "storage.postgres.SetEmailVerified"

	query := `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1
		RETURNING ` + userColumns + `;
	`

	u, err := scanUser(r.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrTokenNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UpdateVerificationToken replaces the token of a still-unverified user.
func (r *PostgresRepo) UpdateVerificationToken(ctx context.Context, email, token string) error {
	const op = "storage.postgres.UpdateVerificationToken"

	query := `
		UPDATE users
		SET verification_token = $2
		WHERE email = $1 AND is_verified = FALSE;
	`

	tag, err := r.db.Exec(ctx, query, email, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) SaveMedia(ctx context.Context, m models.MediaItem) error {
	const op = "storage.postgres.SaveMedia"

	query := `
		INSERT INTO media_items (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`

	_, err := r.db.Exec(ctx, query,
		m.ID, m.UserID, m.Title, m.Type, m.Status, m.Current, m.Total, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) MediaByUser(ctx context.Context, userID string) ([]models.MediaItem, error) {
	const op = "storage.postgres.MediaByUser"

	query := `
		SELECT ` + mediaColumns + `
		FROM media_items
		WHERE user_id = $1
		ORDER BY created_at
		LIMIT $2;
	`

	rows, err := r.db.Query(ctx, query, userID, storage.MediaListLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := make([]models.MediaItem, 0)

	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

// UpdateMedia applies patch to the item only if it belongs to userID.
func (r *PostgresRepo) UpdateMedia(
	ctx context.Context,
	id, userID string,
	patch models.MediaPatch,
	updatedAt time.Time,
) (models.MediaItem, error) {
	const op = "storage.postgres.UpdateMedia"

	query := `
		UPDATE media_items
		SET title = COALESCE($3, title),
		    type = COALESCE($4, type),
		    status = COALESCE($5, status),
		    current_count = COALESCE($6, current_count),
		    total_count = COALESCE($7, total_count),
		    updated_at = $8
		WHERE id = $1 AND user_id = $2
		RETURNING ` + mediaColumns + `;
	`

	m, err := scanMedia(r.db.QueryRow(ctx, query,
		id, userID, patch.Title, patch.Type, patch.Status, patch.Current, patch.Total, updatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.MediaItem{}, storage.ErrMediaNotFound
		}

		return models.MediaItem{}, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

func (r *PostgresRepo) DeleteMedia(ctx context.Context, id, userID string) error {
	const op = "storage.postgres.DeleteMedia"

	query := `DELETE FROM media_items WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrMediaNotFound
	}

	return nil
}

func (r *PostgresRepo) Close() {
	r.db.Close()
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PassHash,
		&u.IsVerified,
		&u.VerificationToken,
		&u.CreatedAt,
	)

	return u, err
}

func scanMedia(row pgx.Row) (models.MediaItem, error) {
	var m models.MediaItem

	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Title,
		&m.Type,
		&m.Status,
		&m.Current,
		&m.Total,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	return m, err
}
