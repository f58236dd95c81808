// Package players управляет игроками: регистрацией, кошельками и бурами.
// models.go описывает структуры данных для работы с таблицей players.
package players

import "time"

// Player представляет игрока в базе данных.
// Каждый пользователь, вступивший в MINE_CHAT_ID, автоматически
// создаётся в этой таблице.
type Player struct {
	ID            int64     `db:"id"`             // Автоинкрементный ID записи в БД
	UserID        int64     `db:"user_id"`        // Telegram user ID (уникальный)
	Username      string    `db:"username"`       // @username (может быть пустым)
	FirstName     string    `db:"first_name"`     // Имя пользователя
	LastName      string    `db:"last_name"`      // Фамилия (может быть пустой)
	WalletAddress *string   `db:"wallet_address"` // Привязанный адрес кошелька (может быть nil)
	RigTokenID    *int64    `db:"rig_token_id"`   // ID экипированного бура (nil — бур не экипирован)
	IsAdmin       bool      `db:"is_admin"`       // Флаг администратора
	IsBanned      bool      `db:"is_banned"`      // Флаг бана
	JoinedAt      time.Time `db:"joined_at"`      // Когда вступил в чат
	CreatedAt     time.Time `db:"created_at"`     // Когда запись создана в БД
	UpdatedAt     time.Time `db:"updated_at"`     // Последнее обновление записи
}

// UpdateInfo содержит данные для обновления информации об игроке.
// Используется, когда игрок возвращается в чат и его имя/username могли измениться.
type UpdateInfo struct {
	Username  string // Новый @username
	FirstName string // Новое имя
	LastName  string // Новая фамилия
}

// DisplayName возвращает отображаемое имя игрока.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (p *Player) DisplayName() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	name := p.FirstName
	if p.LastName != "" {
		name += " " + p.LastName
	}
	return name
}
