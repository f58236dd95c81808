// Package settlement — strategies.go содержит стратегии отправки
// транзакции. Стратегии пробуются по порядку с единым контрактом
// попытки: сначала транзакция с динамической комиссией (EIP-1559),
// при неудаче — легаси-транзакция с фиксированной ценой газа.
package settlement

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// txEnv — окружение одной попытки отправки: всё, что нужно стратегии,
// собрано заранее (цены газа стратегия запрашивает сама, свежие).
type txEnv struct {
	client   ChainClient
	signer   Signer
	chainID  *big.Int
	to       ethcommon.Address
	value    *big.Int
	gasLimit uint64
	nonce    uint64
}

// submitStrategy — единый контракт попытки отправки транзакции.
type submitStrategy interface {
	name() string
	buildAndSend(ctx context.Context, env *txEnv) (*types.Transaction, error)
}

// defaultStrategies — порядок проб: динамическая комиссия, затем легаси.
func defaultStrategies() []submitStrategy {
	return []submitStrategy{dynamicFeeStrategy{}, legacyStrategy{}}
}

// dynamicFeeStrategy отправляет EIP-1559 транзакцию.
type dynamicFeeStrategy struct{}

func (dynamicFeeStrategy) name() string { return "dynamic_fee" }

func (dynamicFeeStrategy) buildAndSend(ctx context.Context, env *txEnv) (*types.Transaction, error) {
	tipCap, err := env.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, err
	}
	gasPrice, err := env.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	// feeCap = 2*gasPrice + tip: переживает рост базовой комиссии
	feeCap := new(big.Int).Add(new(big.Int).Mul(gasPrice, big.NewInt(2)), tipCap)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   env.chainID,
		Nonce:     env.nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       env.gasLimit,
		To:        &env.to,
		Value:     env.value,
	})
	signed, err := env.signer.SignTx(tx, env.chainID)
	if err != nil {
		return nil, err
	}
	if err := env.client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

// legacyStrategy отправляет легаси-транзакцию с фиксированной ценой газа.
type legacyStrategy struct{}

func (legacyStrategy) name() string { return "legacy" }

func (legacyStrategy) buildAndSend(ctx context.Context, env *txEnv) (*types.Transaction, error) {
	gasPrice, err := env.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    env.nonce,
		GasPrice: gasPrice,
		Gas:      env.gasLimit,
		To:       &env.to,
		Value:    env.value,
	})
	signed, err := env.signer.SignTx(tx, env.chainID)
	if err != nil {
		return nil, err
	}
	if err := env.client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}
