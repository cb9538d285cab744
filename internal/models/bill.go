package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ProgramLevel distinguishes undergraduate and postgraduate classes.
type ProgramLevel string

const (
	ProgramLevelUG ProgramLevel = "UG"
	ProgramLevelPG ProgramLevel = "PG"
)

// ExamType enumerates the examinations a bill can cover.
type ExamType string

const (
	ExamTypeTheory     ExamType = "Theory"
	ExamTypeInternal   ExamType = "Internal"
	ExamTypeExternal   ExamType = "External"
	ExamTypePractical  ExamType = "Practical"
	ExamTypeDepartment ExamType = "Department"
)

// Departments lists the departments accounts and bills may belong to.
var Departments = []string{
	"Computer Science",
	"Biotech",
	"Commerce",
	"Arts",
	"Sociology",
	"BBA",
	"BBA-CA",
	"Law",
	"Chemistry",
	"Electronics",
	"BCA",
}

// Batch records attendance for one exam shift.
type Batch struct {
	BatchNo         string `json:"batchNo"`
	StudentsPresent int    `json:"studentsPresent"`
}

// StaffPerson is one paid member of staff inside a role.
type StaffPerson struct {
	Name           string   `json:"name"`
	Rate           string   `json:"rate"`
	TotalAmount    float64  `json:"totalAmount"`
	Mobile         string   `json:"mobile,omitempty"`
	ExtraAllowance *float64 `json:"extraAllowance,omitempty"`
}

// Allowance returns the extra allowance or zero.
func (p StaffPerson) Allowance() float64 {
	if p.ExtraAllowance == nil {
		return 0
	}
	return *p.ExtraAllowance
}

// StaffPayment groups the people paid for the same role.
type StaffPayment struct {
	Role    string        `json:"role"`
	Persons []StaffPerson `json:"persons"`
}

// Batches is persisted as JSONB.
type Batches []Batch

// StaffPayments is persisted as JSONB.
type StaffPayments []StaffPayment

// Bill is an exam remuneration record owned by the user who created it.
type Bill struct {
	ID               string        `db:"id" json:"_id"`
	UserID           string        `db:"user_id" json:"userId"`
	Department       string        `db:"department" json:"department"`
	ClassName        string        `db:"class_name" json:"className"`
	Subject          string        `db:"subject" json:"subject"`
	Semester         int           `db:"semester" json:"semester"`
	ProgramLevel     ProgramLevel  `db:"program_level" json:"programLevel"`
	ExamSession      string        `db:"exam_session" json:"examSession"`
	ExamType         ExamType      `db:"exam_type" json:"examType"`
	PaperNo          *string       `db:"paper_no" json:"paperNo,omitempty"`
	TotalStudents    int           `db:"total_students" json:"totalStudents"`
	PresentStudents  int           `db:"present_students" json:"presentStudents"`
	AbsentStudents   int           `db:"absent_students" json:"absentStudents"`
	TotalBatches     int           `db:"total_batches" json:"totalBatches"`
	DurationPerBatch float64       `db:"duration_per_batch" json:"durationPerBatch"`
	Batches          Batches       `db:"batches" json:"batches"`
	StaffPayments    StaffPayments `db:"staff_payments" json:"staffPayments"`
	TotalAmount      float64       `db:"total_amount" json:"totalAmount"`
	BalancePayable   float64       `db:"balance_payable" json:"balancePayable"`
	AmountInWords    string        `db:"amount_in_words" json:"amountInWords"`
	ExamStartTime    *time.Time    `db:"exam_start_time" json:"examStartTime,omitempty"`
	ExamEndTime      *time.Time    `db:"exam_end_time" json:"examEndTime,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updatedAt"`
}

// OwnedBy reports whether userID created the bill.
func (b *Bill) OwnedBy(userID string) bool {
	return b != nil && b.UserID == userID
}

// PersonRef locates a staff person inside a bill.
type PersonRef struct {
	Role   string
	Person StaffPerson
}

// People flattens staff payments into role-tagged persons in document order.
func (b *Bill) People() []PersonRef {
	var out []PersonRef
	for _, sp := range b.StaffPayments {
		for _, p := range sp.Persons {
			out = append(out, PersonRef{Role: sp.Role, Person: p})
		}
	}
	return out
}

// Value marshals batches for persistence.
func (b Batches) Value() (driver.Value, error) {
	if b == nil {
		b = Batches{}
	}
	return marshalJSONB(b, "batches")
}

// Scan unmarshals a JSONB column into batches.
func (b *Batches) Scan(value interface{}) error {
	return scanJSONB(value, b, "batches")
}

// Value marshals staff payments for persistence.
func (s StaffPayments) Value() (driver.Value, error) {
	if s == nil {
		s = StaffPayments{}
	}
	return marshalJSONB(s, "staff payments")
}

// Scan unmarshals a JSONB column into staff payments.
func (s *StaffPayments) Scan(value interface{}) error {
	return scanJSONB(value, s, "staff payments")
}

func marshalJSONB(v interface{}, what string) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", what, err)
	}
	return data, nil
}

func scanJSONB(value interface{}, dest interface{}, what string) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported %s type %T", what, value)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return nil
}
