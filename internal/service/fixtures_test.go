package service

import (
	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
)

func strRef(s string) *string     { return &s }
func intRef(i int) *int           { return &i }
func floatRef(f float64) *float64 { return &f }

func flexRef(s string) *dto.FlexibleString {
	v := dto.FlexibleString(s)
	return &v
}

// practicalBillRequest is a valid practical exam submission: 80 students, 76
// present, two external examiners on "2880+500" and one internal on "535+500".
func practicalBillRequest() dto.BillRequest {
	return dto.BillRequest{
		Department:       strRef("Computer Science"),
		ClassName:        strRef("T.Y. B.Sc (Comp Sci)"),
		Subject:          strRef("Data Structures Lab"),
		Semester:         intRef(5),
		ProgramLevel:     strRef("UG"),
		ExamSession:      strRef("2024 - 2025"),
		ExamType:         strRef("Practical"),
		TotalStudents:    intRef(80),
		PresentStudents:  intRef(76),
		TotalBatches:     intRef(4),
		DurationPerBatch: floatRef(3),
		Batches: []dto.BatchRequest{
			{BatchNo: flexRef("A1"), StudentsPresent: intRef(19)},
			{BatchNo: flexRef("A2"), StudentsPresent: intRef(19)},
			{BatchNo: flexRef("B1"), StudentsPresent: intRef(19)},
			{BatchNo: flexRef("B2"), StudentsPresent: intRef(19)},
		},
		StaffPayments: []dto.StaffPaymentRequest{
			{Role: strRef("External Examiner"), Persons: []dto.PersonRequest{
				{Name: strRef("Rutuja Molashi"), Rate: flexRef("2880+500"), TotalAmount: floatRef(3380), Mobile: "9876543210"},
				{Name: strRef("Prelana Sheela"), Rate: flexRef("2880+500"), TotalAmount: floatRef(3380)},
			}},
			{Role: strRef("Internal Examiner"), Persons: []dto.PersonRequest{
				{Name: strRef("Rahul Lamble"), Rate: flexRef("535+500"), TotalAmount: floatRef(1035)},
			}},
		},
		TotalAmount:    floatRef(7795),
		BalancePayable: floatRef(7795),
		ExamStartTime:  strRef("2025-03-10T09:00:00+05:30"),
		ExamEndTime:    strRef("2025-03-10T12:00:00+05:30"),
	}
}

func practicalBill() *models.Bill {
	bill := &models.Bill{ID: "bill-1", UserID: "user-1"}
	applyBillRequest(bill, NewAmountCalculator().WithDerivedWords(practicalBillRequest()), 4)
	return bill
}
