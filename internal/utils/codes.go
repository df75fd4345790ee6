package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// GenerateCode returns a zero-padded numeric code of the given length.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 {
		digits = 6
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// NewRandomToken returns n random bytes hex-encoded, for single-use links.
func NewRandomToken(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizePhone drops spaces, dashes, dots and brackets.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// NormalizeCountryCode returns "+<digits>" or "" when the input is not a code.
func NormalizeCountryCode(cc string) string {
	cc = strings.TrimPrefix(strings.TrimSpace(cc), "+")
	if !IsDigits(cc) || len(cc) > 4 {
		return ""
	}
	return "+" + cc
}

// Recipient is the gateway format: country code and number, digits only.
func Recipient(countryCode, phone string) string {
	return strings.TrimPrefix(countryCode, "+") + phone
}

func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
