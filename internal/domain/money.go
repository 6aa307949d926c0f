package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Money денежная сумма в минимальных единицах валюты (центы, копейки).
// Stripe работает в тех же единицах, поэтому конвертации с плавающей точкой не нужны.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// NewMoney создает сумму, нормализуя код валюты.
func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// IsPositive возвращает true для строго положительной суммы.
func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// Decimal возвращает сумму в виде десятичной строки ("9.99").
func (m Money) Decimal() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

func (m Money) String() string {
	return m.Decimal() + " " + strings.ToUpper(m.Currency)
}

// ParseMinorUnits разбирает целое число минимальных единиц из метаданных платежа.
func ParseMinorUnits(raw string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	return value, nil
}
