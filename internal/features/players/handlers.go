// Package players — handlers.go обрабатывает команды !профиль, !кошелёк и !бур.
package players

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	apperrors "serotonyl.ru/mining-bot/internal/common"
)

// Handler обрабатывает команды игроков.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик игроков.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleProfile обрабатывает команду !профиль.
func (h *Handler) HandleProfile(ctx context.Context, chatID, userID int64) {
	p, err := h.service.Get(ctx, userID)
	if err != nil {
		h.sendMessage(chatID, "❌ Ты ещё не зарегистрирован. Напиши что-нибудь в чат шахты.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 %s\n\n", p.DisplayName()))

	if p.WalletAddress != nil {
		sb.WriteString(fmt.Sprintf("💳 Кошелёк: %s\n", *p.WalletAddress))
	} else {
		sb.WriteString("💳 Кошелёк: не привязан (!кошелёк 0x...)\n")
	}

	if p.RigTokenID != nil {
		sb.WriteString(fmt.Sprintf("⛏ Бур: #%d\n", *p.RigTokenID))
	} else {
		sb.WriteString("⛏ Бур: не экипирован (!бур <id>)\n")
	}

	h.sendMessage(chatID, sb.String())
}

// HandleWallet обрабатывает команду !кошелёк <адрес>.
func (h *Handler) HandleWallet(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "Использование: !кошелёк 0x<адрес>")
		return
	}

	err := h.service.LinkWallet(ctx, userID, args[0])
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidAddress) {
			h.sendMessage(chatID, "❌ Это не похоже на адрес кошелька")
			return
		}
		log.WithError(err).Error("Ошибка привязки кошелька")
		h.sendMessage(chatID, "❌ Не удалось привязать кошелёк")
		return
	}

	h.sendMessage(chatID, "✅ Кошелёк привязан. Теперь экипируй бур: !бур <id>")
}

// HandleRig обрабатывает команду !бур <id> / !бур снять.
func (h *Handler) HandleRig(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) < 1 {
		h.sendMessage(chatID, "Использование: !бур <id> или !бур снять")
		return
	}

	if args[0] == "снять" {
		if err := h.service.UnequipRig(ctx, userID); err != nil {
			log.WithError(err).Error("Ошибка снятия бура")
			h.sendMessage(chatID, "❌ Не удалось снять бур")
			return
		}
		h.sendMessage(chatID, "✅ Бур снят")
		return
	}

	tokenID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || tokenID <= 0 {
		h.sendMessage(chatID, "❌ ID бура должен быть положительным числом")
		return
	}

	if err := h.service.EquipRig(ctx, userID, tokenID); err != nil {
		log.WithError(err).Error("Ошибка экипировки бура")
		h.sendMessage(chatID, "❌ Не удалось экипировать бур")
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("✅ Бур #%d экипирован. Вперёд, в шахту: !копать", tokenID))
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
