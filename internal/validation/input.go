package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// Константы валидации
const (
	MaxFeedbackLength = 10000
	MaxPhotosCount    = 20
	MaxIdentifierLen  = 320
)

var (
	emailRegex       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	contentHashRegex = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
)

// NormalizeIdentifier приводит email к каноничному виду: без пробелов по краям, в нижнем регистре.
// Один и тот же адрес в разном регистре попадает под один лимит и одну запись.
func NormalizeIdentifier(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateIdentifier проверяет базовый формат email: непустые локальная часть и домен с точкой.
func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("email обязателен")
	}
	if len(identifier) > MaxIdentifierLen {
		return fmt.Errorf("email должен быть не длиннее %d символов", MaxIdentifierLen)
	}
	if !emailRegex.MatchString(identifier) {
		return fmt.Errorf("некорректный формат email")
	}
	return nil
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateWalletAddress проверяет, что строка является 20-байтным hex адресом.
func ValidateWalletAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("некорректный адрес кошелька")
	}
	return nil
}

// ChecksumAddress возвращает адрес в EIP-55 представлении.
func ChecksumAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// NormalizeContentHash приводит хэш содержимого к нижнему регистру и проверяет формат 0x + 64 hex.
func NormalizeContentHash(hash string) (string, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !contentHashRegex.MatchString(hash) {
		return "", fmt.Errorf("некорректный хэш содержимого")
	}
	return hash, nil
}
