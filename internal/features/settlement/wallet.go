// Package settlement — wallet.go содержит казначейского подписанта.
// Бот кастодиальный: комиссии выводов платит один казначейский кошелёк,
// ключ которого приходит из окружения.
package settlement

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TreasurySigner подписывает транзакции приватным ключом казначейства.
type TreasurySigner struct {
	key     *ecdsa.PrivateKey
	address ethcommon.Address
}

// NewTreasurySigner создаёт подписанта из hex-ключа (с 0x или без).
func NewTreasurySigner(hexKey string) (*TreasurySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("некорректный ключ казначейства: %w", err)
	}
	return &TreasurySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address возвращает адрес казначейского кошелька.
func (s *TreasurySigner) Address() ethcommon.Address {
	return s.address
}

// SignTx подписывает транзакцию для указанной сети.
func (s *TreasurySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("ошибка подписи транзакции: %w", err)
	}
	return signed, nil
}
