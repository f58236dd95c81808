// Package settlement — chain.go содержит привязку к боевой сети:
// подключение ethclient и переключатель сети.
package settlement

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
)

// Dial подключается к RPC-узлу сети. Возвращаемый *ethclient.Client
// удовлетворяет интерфейсу ChainClient.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к RPC %s: %w", rpcURL, err)
	}
	return client, nil
}

// LoggingSwitcher — переключатель сети кастодиального кошелька.
// Кошелёк у нас один и живёт на стороне бота, так что «переключение» —
// это запись в лог: если RPC-узел смотрит не в ту сеть, чинить надо
// конфигурацию, и повторная проверка честно провалится.
type LoggingSwitcher struct{}

// SwitchNetwork логирует попытку переключения.
func (LoggingSwitcher) SwitchNetwork(_ context.Context, want *big.Int) error {
	log.WithField("chain_id", want.String()).Warn("Попытка переключения сети кошелька")
	return nil
}
