// Package mining — service.go проверяет предусловия запуска сессии:
// включённый майнинг, привязанный кошелёк, экипированный бур.
// Нарушение предусловия — всегда явная ошибка, никогда не молчание.
package mining

import (
	"context"

	"serotonyl.ru/mining-bot/internal/common"
)

// PlayerSource отвечает на вопросы об экипировке игрока.
type PlayerSource interface {
	HasWallet(ctx context.Context, userID int64) (bool, error)
	HasRig(ctx context.Context, userID int64) (bool, error)
}

// PauseSource сообщает, остановлен ли майнинг глобально (админ-панель).
type PauseSource interface {
	Paused() bool
}

// Service — фасад сессий добычи с проверкой предусловий.
type Service struct {
	manager *Manager
	players PlayerSource
	pause   PauseSource
	enabled bool
}

// NewService создаёт сервис добычи.
func NewService(manager *Manager, players PlayerSource, pause PauseSource, enabled bool) *Service {
	return &Service{manager: manager, players: players, pause: pause, enabled: enabled}
}

// StartSession запускает сессию после проверки предусловий.
func (s *Service) StartSession(ctx context.Context, userID int64) (Snapshot, error) {
	if !s.enabled || (s.pause != nil && s.pause.Paused()) {
		return Snapshot{}, common.ErrMiningPaused
	}

	hasWallet, err := s.players.HasWallet(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if !hasWallet {
		return Snapshot{}, common.ErrNoWallet
	}

	hasRig, err := s.players.HasRig(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if !hasRig {
		return Snapshot{}, common.ErrNoRig
	}

	return s.manager.Start(ctx, userID)
}

// Status возвращает снимок сессии игрока.
func (s *Service) Status(ctx context.Context, userID int64) (Snapshot, error) {
	return s.manager.Status(ctx, userID)
}

// Cancel отменяет сессию игрока.
func (s *Service) Cancel(ctx context.Context, userID int64) error {
	return s.manager.Cancel(ctx, userID)
}
