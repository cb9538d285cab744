package service

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, http.StatusBadRequest, appErr.Status)
	names := make([]string, 0, len(appErr.Fields))
	for _, f := range appErr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func newTestBillValidator(cfg BillValidatorConfig) *BillValidator {
	return NewBillValidator(NewValidator(), NewAmountCalculator(), cfg)
}

func TestBillValidatorAcceptsValidRequest(t *testing.T) {
	req := NewAmountCalculator().WithDerivedWords(practicalBillRequest())
	assert.NoError(t, newTestBillValidator(BillValidatorConfig{}).Validate(req))
}

func TestBillValidatorSemesterOutOfRange(t *testing.T) {
	req := NewAmountCalculator().WithDerivedWords(practicalBillRequest())
	req.Semester = intRef(7)

	assert.Equal(t, []string{"semester"}, fieldNames(t, newTestBillValidator(BillValidatorConfig{}).Validate(req)))
}

func TestBillValidatorExamEndMustFollowStart(t *testing.T) {
	v := newTestBillValidator(BillValidatorConfig{})
	req := NewAmountCalculator().WithDerivedWords(practicalBillRequest())

	req.ExamEndTime = req.ExamStartTime
	assert.Equal(t, []string{"examEndTime"}, fieldNames(t, v.Validate(req)))

	req.ExamEndTime = strRef("2025-03-10T08:00:00+05:30")
	assert.Equal(t, []string{"examEndTime"}, fieldNames(t, v.Validate(req)))

	req.ExamEndTime = strRef("next tuesday")
	assert.Equal(t, []string{"examEndTime"}, fieldNames(t, v.Validate(req)))

	req.ExamStartTime, req.ExamEndTime = nil, strRef("2025-03-10T08:00:00Z")
	assert.NoError(t, v.Validate(req))
}

func TestBillValidatorCollectsEveryViolation(t *testing.T) {
	req := NewAmountCalculator().WithDerivedWords(practicalBillRequest())
	req.Department = strRef("   ")
	req.ProgramLevel = strRef("PhD")
	req.TotalBatches = intRef(0)
	req.Batches[1].StudentsPresent = intRef(-1)
	req.StaffPayments[0].Persons[1].Mobile = "12345"
	req.StaffPayments[1].Persons = nil

	names := fieldNames(t, newTestBillValidator(BillValidatorConfig{}).Validate(req))
	assert.ElementsMatch(t, []string{
		"department",
		"programLevel",
		"totalBatches",
		"batches[1].studentsPresent",
		"staffPayments[0].persons[1].mobile",
		"staffPayments[1].persons",
	}, names)
}

func TestBillValidatorRequiresFields(t *testing.T) {
	names := fieldNames(t, newTestBillValidator(BillValidatorConfig{}).Validate(dto.BillRequest{}))
	assert.Contains(t, names, "department")
	assert.Contains(t, names, "batches")
	assert.Contains(t, names, "staffPayments")
	assert.Contains(t, names, "amountInWords")
	assert.NotContains(t, names, "paperNo")
	assert.NotContains(t, names, "absentStudents")
}

func TestBillValidatorPresentCannotExceedTotal(t *testing.T) {
	req := NewAmountCalculator().WithDerivedWords(practicalBillRequest())
	req.PresentStudents = intRef(81)
	assert.Equal(t, []string{"presentStudents"}, fieldNames(t, newTestBillValidator(BillValidatorConfig{}).Validate(req)))
}

func TestBillValidatorDoesNotMutateInput(t *testing.T) {
	req := practicalBillRequest()
	_ = newTestBillValidator(BillValidatorConfig{StrictTotals: true}).Validate(req)
	assert.Nil(t, req.AmountInWords)
	assert.Nil(t, req.AbsentStudents)
}

func TestBillValidatorTrustsTotalsByDefault(t *testing.T) {
	req := NewAmountCalculator().WithDerivedWords(practicalBillRequest())
	req.TotalAmount = floatRef(9999)
	req.AbsentStudents = intRef(30)
	assert.NoError(t, newTestBillValidator(BillValidatorConfig{}).Validate(req))
}

func TestBillValidatorStrictTotals(t *testing.T) {
	v := newTestBillValidator(BillValidatorConfig{StrictTotals: true, Tolerance: 0.5})

	req := NewAmountCalculator().WithDerivedWords(practicalBillRequest())
	require.NoError(t, v.Validate(req))

	req.TotalAmount = floatRef(7795.4)
	require.NoError(t, v.Validate(req))

	req.TotalAmount = floatRef(8000)
	req.AbsentStudents = intRef(5)
	req.StaffPayments[1].Persons[0].TotalAmount = floatRef(1100)
	assert.ElementsMatch(t, []string{
		"totalAmount",
		"absentStudents",
		"staffPayments[1].persons[0].totalAmount",
	}, fieldNames(t, v.Validate(req)))
}
