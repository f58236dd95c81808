// Package postgres — queries.go содержит прогон встроенных миграций
// игровой схемы (players, player_stats, pending_rewards и т.д.).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// ExecMigrationSQL применяет одну миграцию схемы в транзакции:
// уже применённая версия пропускается, упавший SQL откатывается целиком,
// успешная версия фиксируется в schema_migrations.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var applied bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&applied)
	if err != nil {
		return fmt.Errorf("ошибка проверки версии %d: %w", version, err)
	}
	if applied {
		log.WithField("version", version).Debug("Миграция уже применена, пропускаем")
		return nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("ошибка записи версии %d: %w", version, err)
	}

	return tx.Commit(ctx)
}
