// Package ethsig проверяет подписи personal_sign (EIP-191).
package ethsig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrSignatureMismatch = errors.New("ethsig: подпись не принадлежит адресу")

// RecoverAddress восстанавливает адрес, подписавший message через personal_sign.
func RecoverAddress(message []byte, signatureHex string) (common.Address, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signatureHex))
	if err != nil {
		return common.Address{}, fmt.Errorf("ethsig: некорректная подпись: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("ethsig: длина подписи %d, ожидается %d", len(sig), crypto.SignatureLength)
	}

	// кошельки отдают V = 27/28, crypto ждёт 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("ethsig: не удалось восстановить ключ: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify проверяет, что signatureHex подписан владельцем address.
func Verify(address string, message []byte, signatureHex string) error {
	recovered, err := RecoverAddress(message, signatureHex)
	if err != nil {
		return err
	}
	if recovered != common.HexToAddress(address) {
		return fmt.Errorf("%w: восстановлен %s", ErrSignatureMismatch, recovered.Hex())
	}
	return nil
}
