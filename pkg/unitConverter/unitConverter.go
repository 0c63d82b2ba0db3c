// Package unitConverter converts between human-unit decimal strings (APT) and
// the ledger's integer unit (octa). It is the only place amounts are scaled.
package unitConverter

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
)

const (
	Decimals = 8
	Scale    = 100000000
)

var (
	scale         = big.NewInt(Scale)
	decimalRegex  = regexp.MustCompile(`^(\d*)(?:\.(\d*))?$`)
	integerRegex  = regexp.MustCompile(`^\d+$`)
	fractionZeros = strings.Repeat("0", Decimals)
)

// ToLedgerUnits converts a non-negative decimal string to an octa integer string.
// Fractional digits beyond the eighth are truncated toward zero.
func ToLedgerUnits(amount string) (string, error) {
	v, err := parse(amount)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// ToDisplayUnits renders an octa integer string with exactly eight fractional digits.
func ToDisplayUnits(octa string) (string, error) {
	octa = strings.TrimSpace(octa)
	if !integerRegex.MatchString(octa) {
		return "", taskErrors.New(taskErrors.KindInvalidAmount, "toDisplayUnits", "%q is not a non-negative integer", octa)
	}
	v, _ := new(big.Int).SetString(octa, 10)
	return format(v), nil
}

func ToDisplayUnitsUint64(octa uint64) string {
	return format(new(big.Int).SetUint64(octa))
}

// Normalize returns the canonical eight-digit form of a human amount.
func Normalize(amount string) (string, error) {
	v, err := parse(amount)
	if err != nil {
		return "", err
	}
	return format(v), nil
}

// IsPositive reports whether octa is an integer string greater than zero.
func IsPositive(octa string) bool {
	v, ok := new(big.Int).SetString(strings.TrimSpace(octa), 10)
	return ok && v.Sign() > 0
}

// ToUint64 parses an octa string that must fit the ledger's u64.
func ToUint64(octa string) (uint64, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(octa), 10)
	if !ok || v.Sign() < 0 || !v.IsUint64() {
		return 0, taskErrors.New(taskErrors.KindInvalidAmount, "toUint64", "%q is not a u64 amount", octa)
	}
	return v.Uint64(), nil
}

func parse(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	m := decimalRegex.FindStringSubmatch(amount)
	if m == nil || (m[1] == "" && m[2] == "") {
		return nil, taskErrors.New(taskErrors.KindInvalidAmount, "toLedgerUnits", "%q is not a non-negative decimal", amount)
	}

	whole, frac := m[1], m[2]
	if len(frac) > Decimals {
		frac = frac[:Decimals]
	}
	frac += fractionZeros[len(frac):]

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return new(big.Int), nil
	}
	v, _ := new(big.Int).SetString(digits, 10)
	return v, nil
}

func format(v *big.Int) string {
	q, r := new(big.Int).QuoRem(v, scale, new(big.Int))
	frac := r.String()
	return q.String() + "." + fractionZeros[len(frac):] + frac
}
