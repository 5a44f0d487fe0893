package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nkuznetsov/linkcut/internal/models"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
	ErrLinkExpired  = errors.New("link expired")
)

// uniqueViolationCode — код ошибки PostgreSQL для нарушения unique constraint.
const uniqueViolationCode = "23505"

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByShortCode(ctx context.Context, code string) (*models.Link, error)
	UpdateCode(ctx context.Context, id int64, newCode string) error
	UpdateExpiry(ctx context.Context, id int64, expiresAt *time.Time) error
	IncrementClicks(ctx context.Context, code string) (int64, error)
	Delete(ctx context.Context, code string) error
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (short_code, original_url, owner_name, flagged, flag_reason, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.ShortCode,
		link.OriginalURL,
		link.Owner,
		link.Flagged,
		link.FlagReason,
		link.ExpiresAt,
	).Scan(&link.ID, &link.CreatedAt, &link.UpdatedAt)

	if err != nil {
		// Последняя линия защиты от гонки резервации и вставки
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetByShortCode возвращает запись без фильтра по сроку жизни:
// истечение проверяется на пути чтения, просроченные строки остаются в таблице.
func (r *linkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	query := `
		SELECT id, short_code, original_url, owner_name, clicks, flagged, flag_reason, expires_at, created_at, updated_at
		FROM links
		WHERE short_code = $1
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.Owner,
		&link.Clicks,
		&link.Flagged,
		&link.FlagReason,
		&link.ExpiresAt,
		&link.CreatedAt,
		&link.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) UpdateCode(ctx context.Context, id int64, newCode string) error {
	query := `UPDATE links SET short_code = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.Pool.Exec(ctx, query, newCode, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to update code: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) UpdateExpiry(ctx context.Context, id int64, expiresAt *time.Time) error {
	query := `UPDATE links SET expires_at = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.Pool.Exec(ctx, query, expiresAt, id)
	if err != nil {
		return fmt.Errorf("failed to update expiry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// IncrementClicks атомарно увеличивает счётчик кликов внутри транзакции.
// Срок жизни перепроверяется перед инкрементом: клики по истёкшим ссылкам не считаются.
// Инкремент выполняется формой clicks = clicks + 1, а не read-then-write,
// поэтому конкурентные доставки webhook не теряют обновления.
func (r *linkRepository) IncrementClicks(ctx context.Context, code string) (int64, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var expiresAt *time.Time
	err = tx.QueryRow(ctx, `SELECT expires_at FROM links WHERE short_code = $1`, code).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLinkNotFound
		}
		return 0, fmt.Errorf("failed to load link for click: %w", err)
	}

	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return 0, ErrLinkExpired
	}

	var clicks int64
	err = tx.QueryRow(ctx,
		`UPDATE links SET clicks = clicks + 1, updated_at = NOW() WHERE short_code = $1 RETURNING clicks`,
		code,
	).Scan(&clicks)
	if err != nil {
		return 0, fmt.Errorf("failed to increment clicks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit click: %w", err)
	}

	return clicks, nil
}

func (r *linkRepository) Delete(ctx context.Context, code string) error {
	query := `DELETE FROM links WHERE short_code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
