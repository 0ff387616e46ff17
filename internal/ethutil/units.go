package ethutil

import (
	"fmt"
	"math/big"
	"strings"
)

// ToSmallestUnit converts a human-readable decimal amount ("0.1", "25",
// "1.000001") into the token's smallest unit at the given decimal precision.
// The conversion is exact decimal arithmetic: "0.1" at 6 decimals is 100000
// and at 18 decimals is 100000000000000000, with no float rounding anywhere.
// Amounts finer than the precision allows are rejected rather than truncated.
func ToSmallestUnit(amount string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if decimals < 0 || decimals > 77 {
		return nil, fmt.Errorf("decimals %d out of range", decimals)
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount %q", amount)
	}
	s = strings.TrimPrefix(s, "+")

	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return nil, fmt.Errorf("malformed amount %q", amount)
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("malformed amount %q", amount)
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return nil, fmt.Errorf("malformed amount %q", amount)
	}

	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	if intPart == "" {
		intPart = "0"
	}

	digits := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", amount)
	}
	return v, nil
}

// FormatUnits renders a smallest-unit value back into a human-readable
// decimal string, trimming trailing fractional zeros.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	if decimals <= 0 {
		return v.String()
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	s := new(big.Rat).SetFrac(v, scale).FloatString(decimals)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
