package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
)

// BillValidatorConfig switches on cross-checks of caller supplied totals.
type BillValidatorConfig struct {
	StrictTotals bool
	Tolerance    float64
}

// BillValidator reports every rule a bill submission breaks. It never mutates the request.
type BillValidator struct {
	validate *validator.Validate
	calc     *AmountCalculator
	config   BillValidatorConfig
}

// NewBillValidator constructs a validator. A nil validate gets the default custom tags.
func NewBillValidator(validate *validator.Validate, calc *AmountCalculator, cfg BillValidatorConfig) *BillValidator {
	if validate == nil {
		validate = NewValidator()
	}
	if calc == nil {
		calc = NewAmountCalculator()
	}
	if cfg.Tolerance < 0 {
		cfg.Tolerance = 0
	}
	return &BillValidator{validate: validate, calc: calc, config: cfg}
}

// Validate returns nil or a validation error listing all violations.
func (v *BillValidator) Validate(req dto.BillRequest) error {
	var violations []appErrors.FieldError
	if err := v.validate.Struct(req); err != nil {
		violations = append(violations, fieldErrors(err)...)
	}
	violations = append(violations, v.checkHeadcount(req)...)
	violations = append(violations, v.checkExamTimes(req)...)
	if v.config.StrictTotals {
		violations = append(violations, v.checkTotals(req)...)
	}
	if len(violations) > 0 {
		return appErrors.Validation(violations)
	}
	return nil
}

func (v *BillValidator) checkHeadcount(req dto.BillRequest) []appErrors.FieldError {
	if req.TotalStudents == nil || req.PresentStudents == nil {
		return nil
	}
	if *req.PresentStudents > *req.TotalStudents {
		return []appErrors.FieldError{{Field: "presentStudents", Message: "must not exceed totalStudents"}}
	}
	return nil
}

func (v *BillValidator) checkExamTimes(req dto.BillRequest) []appErrors.FieldError {
	var out []appErrors.FieldError
	start, startOK := parseOptionalTime(req.ExamStartTime, "examStartTime", &out)
	end, endOK := parseOptionalTime(req.ExamEndTime, "examEndTime", &out)
	if startOK && endOK && !end.After(start) {
		out = append(out, appErrors.FieldError{Field: "examEndTime", Message: "must be after examStartTime"})
	}
	return out
}

func (v *BillValidator) checkTotals(req dto.BillRequest) []appErrors.FieldError {
	var out []appErrors.FieldError
	tol := v.config.Tolerance

	if req.AbsentStudents != nil && req.TotalStudents != nil && req.PresentStudents != nil {
		if want := v.calc.AbsentStudents(*req.TotalStudents, *req.PresentStudents); *req.AbsentStudents != want {
			out = append(out, appErrors.FieldError{Field: "absentStudents", Message: fmt.Sprintf("must equal totalStudents - presentStudents (%d)", want)})
		}
	}

	present := valueOr(req.PresentStudents, 0)
	sum := 0.0
	for i, sp := range req.StaffPayments {
		for j, p := range sp.Persons {
			if p.TotalAmount == nil {
				continue
			}
			sum += *p.TotalAmount
			if p.Rate == nil {
				continue
			}
			person := models.StaffPerson{Rate: string(*p.Rate), TotalAmount: *p.TotalAmount, ExtraAllowance: p.ExtraAllowance}
			b := v.calc.Breakdown(present, person)
			if b.HasBase && !withinTolerance(b.Derived, b.Total, tol) {
				out = append(out, appErrors.FieldError{
					Field:   fmt.Sprintf("staffPayments[%d].persons[%d].totalAmount", i, j),
					Message: fmt.Sprintf("does not match rate derivation (%.2f)", b.Derived),
				})
			}
		}
	}
	if req.TotalAmount != nil && !withinTolerance(sum, *req.TotalAmount, tol) {
		out = append(out, appErrors.FieldError{Field: "totalAmount", Message: fmt.Sprintf("must equal the sum of person totals (%.2f)", sum)})
	}
	return out
}

func parseOptionalTime(raw *string, field string, out *[]appErrors.FieldError) (time.Time, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return time.Time{}, false
	}
	t, err := dto.ParseExamTime(strings.TrimSpace(*raw))
	if err != nil {
		*out = append(*out, appErrors.FieldError{Field: field, Message: "must be an ISO-8601 timestamp"})
		return time.Time{}, false
	}
	return t, true
}
