// Package admin — service.go содержит бизнес-логику панели:
// вход по паролю (bcrypt), защита от перебора, глобальная пауза майнинга.
package admin

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"serotonyl.ru/mining-bot/internal/common"
)

// maxLoginFailures — неудачных попыток в час до блокировки.
const maxLoginFailures = 5

// sessionTTL — время жизни админ-сессии.
const sessionTTL = time.Hour

// Service управляет админ-панелью.
type Service struct {
	repo         *Repository
	passwordHash string
	adminIDs     map[int64]bool
	paused       atomic.Bool
}

// NewService создаёт сервис админ-панели.
func NewService(repo *Repository, passwordHash string, adminIDs []int64) *Service {
	ids := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = true
	}
	return &Service{repo: repo, passwordHash: passwordHash, adminIDs: ids}
}

// IsAdmin проверяет, входит ли пользователь в список администраторов.
func (s *Service) IsAdmin(userID int64) bool {
	return s.adminIDs[userID]
}

// Login выполняет вход администратора по паролю.
func (s *Service) Login(ctx context.Context, userID int64, password string) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}

	failures, err := s.repo.CountRecentFailures(ctx, userID)
	if err != nil {
		return err
	}
	if failures >= maxLoginFailures {
		return common.ErrTooManyAttempts
	}

	err = bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password))
	success := err == nil
	if recErr := s.repo.RecordAttempt(ctx, userID, success); recErr != nil {
		log.WithError(recErr).Error("Не удалось записать попытку входа")
	}
	if !success {
		log.WithField("user_id", userID).Warn("Неудачная попытка входа в админку")
		return common.ErrWrongPassword
	}

	if err := s.repo.CreateSession(ctx, userID, sessionTTL); err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("Администратор вошёл в панель")
	return nil
}

// Logout завершает сессию администратора.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.repo.DeleteSessions(ctx, userID)
}

// IsAuthorized проверяет наличие живой сессии администратора.
func (s *Service) IsAuthorized(ctx context.Context, userID int64) (bool, error) {
	if !s.IsAdmin(userID) {
		return false, nil
	}
	session, err := s.repo.GetActiveSession(ctx, userID)
	if err != nil {
		return false, err
	}
	return session != nil, nil
}

// Pause глобально останавливает запуск новых сессий майнинга.
// Идущие сессии дорабатывают до конца.
func (s *Service) Pause() {
	s.paused.Store(true)
	log.Warn("Майнинг остановлен администратором")
}

// Resume возобновляет майнинг.
func (s *Service) Resume() {
	s.paused.Store(false)
	log.Info("Майнинг возобновлён администратором")
}

// Paused сообщает, остановлен ли майнинг. Реализует mining.PauseSource.
func (s *Service) Paused() bool {
	return s.paused.Load()
}
