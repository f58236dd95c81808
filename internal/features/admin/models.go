// Package admin реализует панель администратора: вход по паролю в личке,
// глобальная пауза майнинга, выдача кристаллов и просмотр игрока.
// models.go описывает сессии и попытки входа.
package admin

import "time"

// Session — авторизованная сессия администратора.
type Session struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// LoginAttempt — попытка входа (для защиты от перебора).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Success     bool      `db:"success"`
	AttemptedAt time.Time `db:"attempted_at"`
}
