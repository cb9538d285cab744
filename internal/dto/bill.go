package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
)

var stringType = reflect.TypeOf("")

// FlexibleString accepts either a JSON string or a JSON number and keeps its text.
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: stringType}
	}
	*f = FlexibleString(n.String())
	return nil
}

// BatchRequest is one batch entry of a bill submission.
type BatchRequest struct {
	BatchNo         *FlexibleString `json:"batchNo" validate:"required,notblank"`
	StudentsPresent *int            `json:"studentsPresent" validate:"required,min=0"`
}

// PersonRequest is one paid person inside a staff payment.
type PersonRequest struct {
	Name           *string         `json:"name" validate:"required,notblank"`
	Rate           *FlexibleString `json:"rate" validate:"required,notblank"`
	TotalAmount    *float64        `json:"totalAmount" validate:"required,min=0"`
	Mobile         string          `json:"mobile,omitempty" validate:"omitempty,mobile"`
	ExtraAllowance *float64        `json:"extraAllowance,omitempty" validate:"omitempty,min=0"`
}

// StaffPaymentRequest groups persons under a role.
type StaffPaymentRequest struct {
	Role    *string         `json:"role" validate:"required,notblank"`
	Persons []PersonRequest `json:"persons" validate:"required,min=1,dive"`
}

// BillRequest is the payload of POST /bill and PUT /bill/:id. Omitted fields are nil,
// which lets updates overlay only what the caller sent.
type BillRequest struct {
	Department       *string               `json:"department" validate:"required,notblank"`
	ClassName        *string               `json:"className" validate:"required,notblank"`
	Subject          *string               `json:"subject" validate:"required,notblank"`
	Semester         *int                  `json:"semester" validate:"required,min=1,max=6"`
	ProgramLevel     *string               `json:"programLevel" validate:"required,oneof=UG PG"`
	ExamSession      *string               `json:"examSession" validate:"required,notblank"`
	ExamType         *string               `json:"examType" validate:"required,oneof=Theory Internal External Practical Department"`
	PaperNo          *FlexibleString       `json:"paperNo,omitempty"`
	TotalStudents    *int                  `json:"totalStudents" validate:"required,min=0"`
	PresentStudents  *int                  `json:"presentStudents" validate:"required,min=0"`
	AbsentStudents   *int                  `json:"absentStudents,omitempty" validate:"omitempty,min=0"`
	TotalBatches     *int                  `json:"totalBatches" validate:"required,min=1"`
	DurationPerBatch *float64              `json:"durationPerBatch" validate:"required,min=0"`
	Batches          []BatchRequest        `json:"batches" validate:"required,min=1,dive"`
	StaffPayments    []StaffPaymentRequest `json:"staffPayments" validate:"required,min=1,dive"`
	TotalAmount      *float64              `json:"totalAmount" validate:"required,min=0"`
	BalancePayable   *float64              `json:"balancePayable" validate:"required,min=0"`
	AmountInWords    *string               `json:"amountInWords" validate:"required,notblank"`
	ExamStartTime    *string               `json:"examStartTime,omitempty"`
	ExamEndTime      *string               `json:"examEndTime,omitempty"`
}

// MailRequest carries the recipient of POST /bill/mail/.../other/:id.
type MailRequest struct {
	Email string `json:"email"`
}

// BillRequestFromModel rebuilds a fully populated request from a stored bill.
func BillRequestFromModel(b *models.Bill) BillRequest {
	req := BillRequest{
		Department:       strPtr(b.Department),
		ClassName:        strPtr(b.ClassName),
		Subject:          strPtr(b.Subject),
		Semester:         intPtr(b.Semester),
		ProgramLevel:     strPtr(string(b.ProgramLevel)),
		ExamSession:      strPtr(b.ExamSession),
		ExamType:         strPtr(string(b.ExamType)),
		TotalStudents:    intPtr(b.TotalStudents),
		PresentStudents:  intPtr(b.PresentStudents),
		AbsentStudents:   intPtr(b.AbsentStudents),
		TotalBatches:     intPtr(b.TotalBatches),
		DurationPerBatch: floatPtr(b.DurationPerBatch),
		TotalAmount:      floatPtr(b.TotalAmount),
		BalancePayable:   floatPtr(b.BalancePayable),
		AmountInWords:    strPtr(b.AmountInWords),
	}
	if b.PaperNo != nil {
		p := FlexibleString(*b.PaperNo)
		req.PaperNo = &p
	}
	if b.ExamStartTime != nil {
		req.ExamStartTime = strPtr(b.ExamStartTime.Format(time.RFC3339))
	}
	if b.ExamEndTime != nil {
		req.ExamEndTime = strPtr(b.ExamEndTime.Format(time.RFC3339))
	}
	for _, batch := range b.Batches {
		no := FlexibleString(batch.BatchNo)
		req.Batches = append(req.Batches, BatchRequest{BatchNo: &no, StudentsPresent: intPtr(batch.StudentsPresent)})
	}
	for _, sp := range b.StaffPayments {
		entry := StaffPaymentRequest{Role: strPtr(sp.Role)}
		for _, p := range sp.Persons {
			rate := FlexibleString(p.Rate)
			person := PersonRequest{Name: strPtr(p.Name), Rate: &rate, TotalAmount: floatPtr(p.TotalAmount), Mobile: p.Mobile}
			if p.ExtraAllowance != nil {
				person.ExtraAllowance = floatPtr(*p.ExtraAllowance)
			}
			entry.Persons = append(entry.Persons, person)
		}
		req.StaffPayments = append(req.StaffPayments, entry)
	}
	return req
}

// Overlay returns a copy of r where every field set in patch replaces r's value.
func (r BillRequest) Overlay(patch BillRequest) BillRequest {
	out := r
	overlayPtr(&out.Department, patch.Department)
	overlayPtr(&out.ClassName, patch.ClassName)
	overlayPtr(&out.Subject, patch.Subject)
	overlayPtr(&out.Semester, patch.Semester)
	overlayPtr(&out.ProgramLevel, patch.ProgramLevel)
	overlayPtr(&out.ExamSession, patch.ExamSession)
	overlayPtr(&out.ExamType, patch.ExamType)
	overlayPtr(&out.PaperNo, patch.PaperNo)
	overlayPtr(&out.TotalStudents, patch.TotalStudents)
	overlayPtr(&out.PresentStudents, patch.PresentStudents)
	overlayPtr(&out.AbsentStudents, patch.AbsentStudents)
	overlayPtr(&out.TotalBatches, patch.TotalBatches)
	overlayPtr(&out.DurationPerBatch, patch.DurationPerBatch)
	overlayPtr(&out.TotalAmount, patch.TotalAmount)
	overlayPtr(&out.BalancePayable, patch.BalancePayable)
	overlayPtr(&out.AmountInWords, patch.AmountInWords)
	overlayPtr(&out.ExamStartTime, patch.ExamStartTime)
	overlayPtr(&out.ExamEndTime, patch.ExamEndTime)
	if patch.Batches != nil {
		out.Batches = patch.Batches
	}
	if patch.StaffPayments != nil {
		out.StaffPayments = patch.StaffPayments
	}
	return out
}

func overlayPtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// ParseExamTime accepts RFC 3339 timestamps and a few ISO-8601 variants without zone.
func ParseExamTime(raw string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", raw)
}

func strPtr(s string) *string     { return &s }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
