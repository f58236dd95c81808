// Package players — service.go содержит бизнес-логику управления игроками.
// Сервис координирует регистрацию, привязку кошельков и экипировку буров.
// Для сессии майнинга игрок обязан иметь привязанный кошелёк и бур.
package players

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	apperrors "serotonyl.ru/mining-bot/internal/common"
)

// Service управляет игроками.
type Service struct {
	repo *Repository // Репозиторий для работы с таблицей players
}

// NewService создаёт новый сервис игроков.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// HandleNewPlayer обрабатывает вступление нового пользователя в чат.
// Если игрок уже есть в базе (перезашёл) — обновляет его данные.
// Если игрок новый — создаёт запись.
func (s *Service) HandleNewPlayer(ctx context.Context, userID int64, username, firstName, lastName string) error {
	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, apperrors.ErrPlayerNotFound) {
		return err
	}
	if existing != nil {
		// Игрок уже зарегистрирован — обновляем данные
		log.WithField("user_id", userID).Info("Игрок перезашёл в чат, обновляем данные")
		return s.repo.UpdateInfo(ctx, userID, UpdateInfo{
			Username:  username,
			FirstName: firstName,
			LastName:  lastName,
		})
	}

	player := &Player{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	}
	if err := s.repo.Create(ctx, player); err != nil {
		return err
	}

	log.WithField("user_id", userID).Info("Новый игрок зарегистрирован")
	return nil
}

// EnsurePlayer гарантирует, что игрок есть в базе (регистрирует при первом сообщении).
func (s *Service) EnsurePlayer(ctx context.Context, userID int64, username, firstName, lastName string) error {
	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.HandleNewPlayer(ctx, userID, username, firstName, lastName)
}

// IsPlayer проверяет, зарегистрирован ли пользователь.
func (s *Service) IsPlayer(ctx context.Context, userID int64) (bool, error) {
	return s.repo.Exists(ctx, userID)
}

// Get возвращает игрока по Telegram user ID.
func (s *Service) Get(ctx context.Context, userID int64) (*Player, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// DisplayName возвращает отображаемое имя игрока для рейтингов.
// Если игрока нет в базе — возвращает обезличенную подпись.
func (s *Service) DisplayName(ctx context.Context, userID int64) string {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Sprintf("игрок %d", userID)
	}
	return p.DisplayName()
}

// LinkWallet привязывает адрес кошелька к игроку.
// Адрес валидируется как hex-адрес EVM-сети.
func (s *Service) LinkWallet(ctx context.Context, userID int64, address string) error {
	if !common.IsHexAddress(address) {
		return apperrors.ErrInvalidAddress
	}

	// Нормализуем к checksum-виду, чтобы в базе был один формат
	checksummed := common.HexToAddress(address).Hex()
	if err := s.repo.SetWallet(ctx, userID, checksummed); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"address": checksummed,
	}).Info("Кошелёк привязан")
	return nil
}

// HasWallet сообщает, привязан ли к игроку кошелёк.
func (s *Service) HasWallet(ctx context.Context, userID int64) (bool, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPlayerNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.WalletAddress != nil && *p.WalletAddress != "", nil
}

// EquipRig экипирует бур с указанным token ID.
func (s *Service) EquipRig(ctx context.Context, userID int64, tokenID int64) error {
	if tokenID <= 0 {
		return apperrors.ErrInvalidAmount
	}
	if err := s.repo.SetRig(ctx, userID, &tokenID); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"rig":     tokenID,
	}).Info("Бур экипирован")
	return nil
}

// UnequipRig снимает бур.
func (s *Service) UnequipRig(ctx context.Context, userID int64) error {
	return s.repo.SetRig(ctx, userID, nil)
}

// HasRig сообщает, экипирован ли у игрока бур.
// Это предусловие запуска сессии майнинга.
func (s *Service) HasRig(ctx context.Context, userID int64) (bool, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPlayerNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.RigTokenID != nil, nil
}
