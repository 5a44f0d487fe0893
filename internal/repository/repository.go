package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nkuznetsov/linkcut/internal/config"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB config: %w", err)
	}

	// Настройка пула соединений
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// InitSchema создаёт таблицу ссылок, если её ещё нет.
// Вызывается на старте сервиса и из интеграционных тестов.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS links (
			id          BIGSERIAL PRIMARY KEY,
			short_code  TEXT NOT NULL UNIQUE,
			original_url TEXT NOT NULL,
			owner_name  TEXT,
			clicks      BIGINT NOT NULL DEFAULT 0,
			flagged     BOOLEAN NOT NULL DEFAULT FALSE,
			flag_reason TEXT,
			expires_at  TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`

	if _, err := db.Pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}

	return nil
}
