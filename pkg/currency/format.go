package currency

import (
	"math"
	"strconv"
	"strings"
)

// Formatter renders whole-rupee amounts with a symbol prefix.
type Formatter struct {
	Symbol string
}

// NewFormatter returns a formatter, defaulting the symbol to "Rs.".
func NewFormatter(symbol string) Formatter {
	if strings.TrimSpace(symbol) == "" {
		symbol = "Rs."
	}
	return Formatter{Symbol: symbol}
}

// Format rounds amount to an integer and prints it with Indian digit grouping.
func (f Formatter) Format(amount float64) string {
	return f.Symbol + " " + Group(Round(amount))
}

// Round returns the nearest whole amount, never negative.
func Round(amount float64) uint64 {
	if amount <= 0 || math.IsNaN(amount) {
		return 0
	}
	return uint64(math.Round(amount))
}

// Group inserts separators the Indian way: last three digits, then pairs.
func Group(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
	var pairs []string
	for len(head) > 2 {
		pairs = append([]string{head[len(head)-2:]}, pairs...)
		head = head[:len(head)-2]
	}
	pairs = append([]string{head}, pairs...)
	return strings.Join(pairs, ",") + "," + tail
}
