// Package currency converts rupee amounts into Indian-numbering words and display strings.
package currency

import (
	"fmt"
	"strconv"
	"strings"
)

// Overflow is returned for amounts wider than nine digits.
const Overflow = "overflow"

var units = [...]string{
	"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	"eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen", "seventeen",
	"eighteen", "nineteen",
}

var tens = [...]string{"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety"}

// group widths and scale words, most significant first.
var groups = []struct {
	width int
	scale string
}{
	{2, "crore"},
	{2, "lakh"},
	{2, "thousand"},
	{1, "hundred"},
	{2, ""},
}

// ToWords spells n using crore/lakh/thousand/hundred grouping, ending in "only".
// Zero yields "zero only".
func ToWords(n uint64) string {
	digits := strconv.FormatUint(n, 10)
	if len(digits) > 9 {
		return Overflow
	}
	if n == 0 {
		return "zero only"
	}

	padded := fmt.Sprintf("%09s", digits)
	parts := make([]string, 0, 8)
	offset := 0
	for i, g := range groups {
		value, _ := strconv.Atoi(padded[offset : offset+g.width])
		offset += g.width
		if value == 0 {
			continue
		}
		words := twoDigits(value)
		if i == len(groups)-1 {
			if len(parts) > 0 {
				parts = append(parts, "and")
			}
			parts = append(parts, words)
			continue
		}
		parts = append(parts, words, g.scale)
	}

	return strings.Join(append(parts, "only"), " ")
}

// StringToWords accepts amounts such as "15,530" and spells them out.
func StringToWords(raw string) (string, error) {
	cleaned := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", fmt.Errorf("amount is empty")
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("amount %q is not a non-negative integer", raw)
		}
	}
	if len(strings.TrimLeft(cleaned, "0")) > 9 {
		return Overflow, nil
	}
	n, err := strconv.ParseUint(cleaned, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse amount: %w", err)
	}
	return ToWords(n), nil
}

func twoDigits(n int) string {
	if n < 20 {
		return units[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + " " + units[n%10]
}
