// Package players — repository.go выполняет все операции с таблицей players.
package players

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/mining-bot/internal/common"
)

// Repository предоставляет методы для работы с таблицей players.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий игроков.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const playerColumns = `id, user_id, username, first_name, last_name,
	wallet_address, rig_token_id, is_admin, is_banned,
	joined_at, created_at, updated_at`

func scanPlayer(row pgx.Row) (*Player, error) {
	var p Player
	err := row.Scan(
		&p.ID, &p.UserID, &p.Username, &p.FirstName, &p.LastName,
		&p.WalletAddress, &p.RigTokenID, &p.IsAdmin, &p.IsBanned,
		&p.JoinedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("ошибка чтения игрока: %w", err)
	}
	return &p, nil
}

// GetByUserID возвращает игрока по Telegram user ID.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE user_id = $1`
	return scanPlayer(r.db.QueryRow(ctx, query, userID))
}

// Create создаёт нового игрока.
func (r *Repository) Create(ctx context.Context, p *Player) error {
	query := `
		INSERT INTO players (user_id, username, first_name, last_name, joined_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, p.UserID, p.Username, p.FirstName, p.LastName)
	if err != nil {
		return fmt.Errorf("ошибка создания игрока: %w", err)
	}
	return nil
}

// UpdateInfo обновляет имя/username игрока (мог измениться в Telegram).
func (r *Repository) UpdateInfo(ctx context.Context, userID int64, info UpdateInfo) error {
	query := `
		UPDATE players
		SET username = $2, first_name = $3, last_name = $4, updated_at = NOW()
		WHERE user_id = $1
	`
	_, err := r.db.Exec(ctx, query, userID, info.Username, info.FirstName, info.LastName)
	if err != nil {
		return fmt.Errorf("ошибка обновления игрока: %w", err)
	}
	return nil
}

// SetWallet сохраняет привязанный адрес кошелька.
func (r *Repository) SetWallet(ctx context.Context, userID int64, address string) error {
	query := `UPDATE players SET wallet_address = $2, updated_at = NOW() WHERE user_id = $1`
	_, err := r.db.Exec(ctx, query, userID, address)
	if err != nil {
		return fmt.Errorf("ошибка привязки кошелька: %w", err)
	}
	return nil
}

// SetRig экипирует бур (или снимает его, если tokenID == nil).
func (r *Repository) SetRig(ctx context.Context, userID int64, tokenID *int64) error {
	query := `UPDATE players SET rig_token_id = $2, updated_at = NOW() WHERE user_id = $1`
	_, err := r.db.Exec(ctx, query, userID, tokenID)
	if err != nil {
		return fmt.Errorf("ошибка экипировки бура: %w", err)
	}
	return nil
}

// Exists проверяет, зарегистрирован ли игрок.
func (r *Repository) Exists(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM players WHERE user_id = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, userID).Scan(&exists)
	return exists, err
}
