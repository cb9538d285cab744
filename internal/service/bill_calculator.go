package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/pkg/currency"
)

var compositeRate = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*\+\s*(\d+(?:\.\d+)?)\s*$`)

// Rate is a parsed staff rate.
type Rate struct {
	Text       string
	PerStudent float64
	Flat       float64
	Allowance  float64
	// Kind is RateNumeric, RateComposite or RateText.
	Kind RateKind
}

// RateKind describes how a rate string was understood.
type RateKind int

const (
	// RateText could not be interpreted; only the text is shown.
	RateText RateKind = iota
	// RateNumeric is paid per present student.
	RateNumeric
	// RateComposite is written "base+allowance" and paid as a flat amount.
	RateComposite
)

// ParseRate interprets "535", "2880+500" or free text.
func ParseRate(raw string) Rate {
	text := strings.TrimSpace(raw)
	if v, err := strconv.ParseFloat(text, 64); err == nil && v >= 0 {
		return Rate{Text: text, PerStudent: v, Kind: RateNumeric}
	}
	if m := compositeRate.FindStringSubmatch(text); m != nil {
		base, _ := strconv.ParseFloat(m[1], 64)
		allowance, _ := strconv.ParseFloat(m[2], 64)
		return Rate{Text: text, Flat: base, Allowance: allowance, Kind: RateComposite}
	}
	return Rate{Text: text}
}

// PaymentBreakdown is the per-person derivation printed on individual bills.
type PaymentBreakdown struct {
	PresentStudents int
	Rate            Rate
	Base            float64
	HasBase         bool
	ExtraAllowance  float64
	Derived         float64
	// Total is the caller supplied amount of record.
	Total float64
}

// AmountCalculator derives counts and amounts for bills.
type AmountCalculator struct{}

// NewAmountCalculator constructs a calculator.
func NewAmountCalculator() *AmountCalculator {
	return &AmountCalculator{}
}

// AbsentStudents returns total - present, floored at zero.
func (AmountCalculator) AbsentStudents(total, present int) int {
	if present > total {
		return 0
	}
	return total - present
}

// ResolveAbsentOnCreate keeps an explicit value and derives otherwise.
func (c AmountCalculator) ResolveAbsentOnCreate(req dto.BillRequest) int {
	if req.AbsentStudents != nil {
		return *req.AbsentStudents
	}
	return c.AbsentStudents(valueOr(req.TotalStudents, 0), valueOr(req.PresentStudents, 0))
}

// ResolveAbsentOnUpdate re-derives only when both counts appear in the patch;
// otherwise the stored value stays.
func (c AmountCalculator) ResolveAbsentOnUpdate(stored int, patch dto.BillRequest) int {
	if patch.AbsentStudents != nil {
		return *patch.AbsentStudents
	}
	if patch.TotalStudents != nil && patch.PresentStudents != nil {
		return c.AbsentStudents(*patch.TotalStudents, *patch.PresentStudents)
	}
	return stored
}

// AmountInWords spells the rounded amount.
func (AmountCalculator) AmountInWords(amount float64) string {
	return currency.ToWords(currency.Round(amount))
}

// WithDerivedWords fills amountInWords from totalAmount when the caller left it out.
func (c AmountCalculator) WithDerivedWords(req dto.BillRequest) dto.BillRequest {
	if req.AmountInWords != nil && strings.TrimSpace(*req.AmountInWords) != "" {
		return req
	}
	if req.TotalAmount == nil || *req.TotalAmount < 0 {
		return req
	}
	words := c.AmountInWords(*req.TotalAmount)
	req.AmountInWords = &words
	return req
}

// Breakdown derives the displayed base amount for one person.
func (AmountCalculator) Breakdown(present int, p models.StaffPerson) PaymentBreakdown {
	rate := ParseRate(p.Rate)
	b := PaymentBreakdown{
		PresentStudents: present,
		Rate:            rate,
		ExtraAllowance:  p.Allowance(),
		Total:           p.TotalAmount,
	}
	switch rate.Kind {
	case RateNumeric:
		b.Base = float64(present) * rate.PerStudent
		b.HasBase = true
	case RateComposite:
		b.Base = rate.Flat
		b.ExtraAllowance += rate.Allowance
		b.HasBase = true
	}
	if b.HasBase {
		b.Derived = b.Base + b.ExtraAllowance
	}
	return b
}

// SumPersonTotals adds every person's total across all roles.
func (AmountCalculator) SumPersonTotals(payments models.StaffPayments) float64 {
	sum := 0.0
	for _, sp := range payments {
		for _, p := range sp.Persons {
			sum += p.TotalAmount
		}
	}
	return sum
}

func withinTolerance(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
