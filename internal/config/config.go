// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// ID чата, в котором идёт игра (единственный разрешённый групповой чат)
	MineChatID int64 `envconfig:"MINE_CHAT_ID" required:"true"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"mining_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Mining ---
	// Длительность сессии выбирается равномерно из [MIN, MAX] секунд
	MiningMinDurationSeconds int `envconfig:"MINING_MIN_DURATION_SECONDS" default:"5"`
	MiningMaxDurationSeconds int `envconfig:"MINING_MAX_DURATION_SECONDS" default:"60"`
	// Случайный бонус к базовой награде: [0, MINING_BASE_BONUS_MAX)
	MiningBaseBonusMax int64 `envconfig:"MINING_BASE_BONUS_MAX" default:"10"`
	// Шаг тикера прогресса (субсекундный)
	MiningProgressTick time.Duration `envconfig:"MINING_PROGRESS_TICK" default:"250ms"`
	// Сколько живёт запись об ожидающей награде после перезапуска
	MiningPendingTTL time.Duration `envconfig:"MINING_PENDING_TTL" default:"5m"`
	// Вероятность перегрузки реактора за сессию (0 отключает)
	MiningOverloadChance float64 `envconfig:"MINING_OVERLOAD_CHANCE" default:"0.08"`

	// --- Challenges ---
	ChallengeRefreshPeriod time.Duration `envconfig:"CHALLENGE_REFRESH_PERIOD" default:"24h"`
	ChallengeSetSize       int           `envconfig:"CHALLENGE_SET_SIZE" default:"3"`

	// --- Chain (вывод наград) ---
	ChainRPCURL        string   `envconfig:"CHAIN_RPC_URL" required:"true"`
	ChainIDRaw         int64    `envconfig:"CHAIN_ID" required:"true"`
	ChainID            *big.Int `envconfig:"-"`
	SettlementAddress  string   `envconfig:"SETTLEMENT_ADDRESS" required:"true"`
	SettlementFeeRaw   string   `envconfig:"SETTLEMENT_FEE_WEI" default:"100000000000000"` // 0.0001 ETH
	SettlementFee      *big.Int `envconfig:"-"`
	GasBufferRaw       string   `envconfig:"GAS_BUFFER_WEI" default:"50000000000000"` // запас на газ
	GasBuffer          *big.Int `envconfig:"-"`
	TreasuryPrivateKey string   `envconfig:"TREASURY_PRIVATE_KEY" required:"true"`
	// Опрос подтверждения: интервал и общий бюджет ожидания
	ConfirmPollInterval time.Duration `envconfig:"CONFIRM_POLL_INTERVAL" default:"3s"`
	ConfirmMaxWait      time.Duration `envconfig:"CONFIRM_MAX_WAIT" default:"90s"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureMiningEnabled     bool `envconfig:"FEATURE_MINING_ENABLED" default:"true"`
	FeatureChallengesEnabled bool `envconfig:"FEATURE_CHALLENGES_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.MineChatID == 0 {
		return fmt.Errorf("MINE_CHAT_ID не задан или равен 0")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.MiningMinDurationSeconds < 1 || c.MiningMaxDurationSeconds < c.MiningMinDurationSeconds {
		return fmt.Errorf("некорректные MINING_MIN/MAX_DURATION_SECONDS")
	}
	if c.MiningOverloadChance < 0 || c.MiningOverloadChance > 1 {
		return fmt.Errorf("MINING_OVERLOAD_CHANCE должен быть в [0,1]")
	}
	if c.ChainID == nil || c.ChainID.Sign() <= 0 {
		return fmt.Errorf("CHAIN_ID должен быть > 0")
	}
	if c.SettlementFee == nil || c.SettlementFee.Sign() <= 0 {
		return fmt.Errorf("SETTLEMENT_FEE_WEI должен быть > 0")
	}
	if c.GasBuffer == nil || c.GasBuffer.Sign() < 0 {
		return fmt.Errorf("GAS_BUFFER_WEI не может быть отрицательным")
	}
	if c.ConfirmPollInterval <= 0 || c.ConfirmMaxWait < c.ConfirmPollInterval {
		return fmt.Errorf("некорректные CONFIRM_POLL_INTERVAL/CONFIRM_MAX_WAIT")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	cfg.ChainID = big.NewInt(cfg.ChainIDRaw)

	cfg.SettlementFee, err = parseBigInt(cfg.SettlementFeeRaw)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_FEE_WEI parse: %w", err)
	}
	cfg.GasBuffer, err = parseBigInt(cfg.GasBufferRaw)
	if err != nil {
		return nil, fmt.Errorf("GAS_BUFFER_WEI parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseBigInt парсит десятичную строку в big.Int.
// Суммы в wei не помещаются в int64, поэтому храним строкой.
func parseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("bad big int %q", s)
	}
	return v, nil
}
