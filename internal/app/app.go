// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/mining-bot/internal/bot"
	"serotonyl.ru/mining-bot/internal/bot/filters"
	"serotonyl.ru/mining-bot/internal/common"
	"serotonyl.ru/mining-bot/internal/config"
	"serotonyl.ru/mining-bot/internal/db/postgres"
	"serotonyl.ru/mining-bot/internal/features/admin"
	"serotonyl.ru/mining-bot/internal/features/challenges"
	"serotonyl.ru/mining-bot/internal/features/economy"
	"serotonyl.ru/mining-bot/internal/features/mining"
	"serotonyl.ru/mining-bot/internal/features/players"
	"serotonyl.ru/mining-bot/internal/features/settlement"
	"serotonyl.ru/mining-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// Уведомления ядра (завершение сессии, призы заданий) уходят игроку
	// в личку. Бот собирается позже сервисов, поэтому замыкание смотрит
	// на переменную, которую заполним после сборки бота.
	var tgBot *bot.Bot
	notifier := common.NotifierFunc(func(userID int64, level common.Level, text string) {
		if tgBot == nil {
			common.LogNotifier{}.Notify(userID, level, text)
			return
		}
		tgBot.SendMessageToUser(userID, level.Emoji()+" "+text)
	})

	// === 3. Репозитории ===
	playerRepo := players.NewRepository(pool)
	economyRepo := economy.NewRepository(pool)
	miningRepo := mining.NewRepository(pool)
	challengeRepo := challenges.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	clock := clockwork.NewRealClock()

	playerService := players.NewService(playerRepo)
	economyService := economy.NewService(economyRepo, playerService)

	miningManager := mining.NewManager(mining.Config{
		MinDurationSeconds: cfg.MiningMinDurationSeconds,
		MaxDurationSeconds: cfg.MiningMaxDurationSeconds,
		BaseBonusMax:       cfg.MiningBaseBonusMax,
		ProgressTick:       cfg.MiningProgressTick,
		PendingTTL:         cfg.MiningPendingTTL,
		OverloadChance:     cfg.MiningOverloadChance,
	}, clock, rand.New(rand.NewSource(time.Now().UnixNano())), miningRepo, notifier)
	miningManager.SetComboSource(economyService)
	miningManager.SetStatsRecorder(economyService)

	adminService := admin.NewService(adminRepo, cfg.AdminPasswordHash, cfg.AdminIDs)

	miningService := mining.NewService(miningManager, playerService, adminService, cfg.FeatureMiningEnabled)

	challengeService := challenges.NewService(challenges.Config{
		RefreshPeriod: cfg.ChallengeRefreshPeriod,
		SetSize:       cfg.ChallengeSetSize,
		Enabled:       cfg.FeatureChallengesEnabled,
	}, challengeRepo, economyService, economyService, notifier,
		clock, rand.New(rand.NewSource(time.Now().UnixNano())))
	miningManager.SetObserver(challengeService)

	// === 5. Вывод наград (сеть) ===
	signer, err := settlement.NewTreasurySigner(cfg.TreasuryPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("ошибка ключа казны: %w", err)
	}
	chainClient, err := settlement.Dial(ctx, cfg.ChainRPCURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к сети: %w", err)
	}
	coordinator := settlement.NewCoordinator(settlement.Config{
		ChainID:           cfg.ChainID,
		SettlementAddress: ethcommon.HexToAddress(cfg.SettlementAddress),
		Fee:               cfg.SettlementFee,
		GasBuffer:         cfg.GasBuffer,
		PollInterval:      cfg.ConfirmPollInterval,
		MaxWait:           cfg.ConfirmMaxWait,
	}, chainClient, signer, settlement.LoggingSwitcher{}, miningManager, economyService, clock)
	coordinator.SetSink(challengeService)
	coordinator.SetNotifier(notifier)

	// === 6. Обработчики ===
	playerHandler := players.NewHandler(playerService, botAPI)
	economyHandler := economy.NewHandler(economyService, botAPI)
	miningHandler := mining.NewHandler(miningService, botAPI)
	settlementHandler := settlement.NewHandler(coordinator, botAPI)
	challengeHandler := challenges.NewHandler(challengeService, botAPI)
	adminHandler := admin.NewHandler(adminService, economyService, playerService, botAPI)

	// === 7. Фильтры ===
	chatFilter := filters.NewChatFilter(cfg.MineChatID, playerService, botAPI)

	// === 8. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		playerService, playerHandler,
		economyService, economyHandler,
		miningHandler,
		settlementHandler,
		challengeHandler,
		adminHandler,
		chatFilter,
	)
	tgBot = b

	// === 9. Планировщик задач ===
	scheduler := jobs.NewScheduler(miningManager, economyService, b.SendMessageToChat)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Инициализируем систему миграций
	if err := postgres.RunMigrations(ctx, pool, "migrations"); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Players},
		{2, migration002Economy},
		{3, migration003Mining},
		{4, migration004Challenges},
		{5, migration005Admin},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Players = `
CREATE TABLE IF NOT EXISTS players (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255),
    first_name VARCHAR(255) NOT NULL,
    last_name VARCHAR(255),
    wallet_address VARCHAR(64),
    rig_token_id BIGINT,
    is_admin BOOLEAN DEFAULT FALSE,
    is_banned BOOLEAN DEFAULT FALSE,
    joined_at TIMESTAMP DEFAULT NOW(),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_players_user_id ON players(user_id);
CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
`

var migration002Economy = `
CREATE TABLE IF NOT EXISTS player_stats (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL REFERENCES players(user_id),
    crystals BIGINT DEFAULT 0,
    season_points BIGINT DEFAULT 0,
    total_sessions BIGINT DEFAULT 0,
    total_earned BIGINT DEFAULT 0,
    total_rare BIGINT DEFAULT 0,
    total_claims BIGINT DEFAULT 0,
    best_combo_level INTEGER DEFAULT 0,
    combo_streak INTEGER DEFAULT 0,
    combo_level INTEGER DEFAULT 0,
    combo_multiplier DOUBLE PRECISION DEFAULT 0,
    combo_last_claim TIMESTAMP,
    combo_expires_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_player_stats_season ON player_stats(season_points DESC);
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT REFERENCES players(user_id),
    amount BIGINT NOT NULL,
    transaction_type VARCHAR(50) NOT NULL,
    description TEXT,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
`

var migration003Mining = `
CREATE TABLE IF NOT EXISTS pending_rewards (
    user_id BIGINT PRIMARY KEY REFERENCES players(user_id),
    amount BIGINT NOT NULL,
    tier INTEGER NOT NULL,
    duration_seconds INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_rewards_created_at ON pending_rewards(created_at);
CREATE TABLE IF NOT EXISTS mining_log (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT REFERENCES players(user_id),
    amount BIGINT NOT NULL,
    tier INTEGER NOT NULL,
    duration_seconds INTEGER NOT NULL,
    tx_hash VARCHAR(80),
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_mining_log_user ON mining_log(user_id);
CREATE INDEX IF NOT EXISTS idx_mining_log_created_at ON mining_log(created_at DESC);
`

var migration004Challenges = `
CREATE TABLE IF NOT EXISTS challenges (
    id UUID PRIMARY KEY,
    user_id BIGINT REFERENCES players(user_id),
    code VARCHAR(64) NOT NULL,
    counter_type VARCHAR(32) NOT NULL,
    title TEXT NOT NULL,
    target BIGINT NOT NULL,
    threshold BIGINT DEFAULT 0,
    reward BIGINT NOT NULL,
    progress BIGINT DEFAULT 0,
    completed BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_challenges_user ON challenges(user_id);
CREATE TABLE IF NOT EXISTS challenge_sets (
    user_id BIGINT PRIMARY KEY REFERENCES players(user_id),
    last_refresh TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS achievements (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT REFERENCES players(user_id),
    code VARCHAR(64) NOT NULL,
    unlocked_at TIMESTAMP DEFAULT NOW(),
    UNIQUE (user_id, code)
);
`

var migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    success BOOLEAN DEFAULT FALSE,
    attempted_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempted_at DESC);
`
