package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/pkg/config"
	"github.com/noah-isme/staff-remuneration-api/pkg/currency"
	"github.com/noah-isme/staff-remuneration-api/pkg/export"
)

// DocumentKind tags the printable documents built from a bill.
type DocumentKind string

const (
	DocumentMainReport     DocumentKind = "main-report"
	DocumentBankForm       DocumentKind = "bank-detail-form"
	DocumentIndividualBill DocumentKind = "individual-bill"
	DocumentPersonalBills  DocumentKind = "personal-bills"
)

// DocumentDateLayout prints dates as "2 January 2006, 3:04 pm".
const DocumentDateLayout = "2 January 2006, 3:04 pm"

// DocumentRequest selects what to assemble. Bill is ignored for the blank bank
// form; Person is required for a single individual bill.
type DocumentRequest struct {
	Kind   DocumentKind
	Bill   *models.Bill
	Person *models.PersonRef
}

// DocumentAssembler turns bills into layout-neutral documents. It has no side effects.
type DocumentAssembler struct {
	letterhead      export.Letterhead
	money           currency.Formatter
	location        *time.Location
	calc            *AmountCalculator
	includeBankForm bool
}

// NewDocumentAssembler builds an assembler for the configured institution.
// An unknown timezone falls back to UTC.
func NewDocumentAssembler(inst config.InstitutionConfig, includeBankForm bool, calc *AmountCalculator) *DocumentAssembler {
	loc, err := time.LoadLocation(inst.Timezone)
	if err != nil || inst.Timezone == "" {
		loc = time.UTC
	}
	if calc == nil {
		calc = NewAmountCalculator()
	}
	return &DocumentAssembler{
		letterhead: export.Letterhead{
			Society:  inst.Society,
			College:  inst.College,
			Address:  inst.Address,
			LogoPath: inst.LogoPath,
		},
		money:           currency.NewFormatter(inst.CurrencySymbol),
		location:        loc,
		calc:            calc,
		includeBankForm: includeBankForm,
	}
}

// Assemble builds the requested document.
func (a *DocumentAssembler) Assemble(req DocumentRequest) (export.Document, error) {
	if req.Kind != DocumentBankForm && req.Bill == nil {
		return export.Document{}, fmt.Errorf("assemble %s: bill is required", req.Kind)
	}
	switch req.Kind {
	case DocumentMainReport:
		return export.Document{
			Title: "Examination Remuneration Report",
			Pages: []export.Page{a.mainReport(req.Bill)},
		}, nil
	case DocumentBankForm:
		return export.Document{
			Title: "Bank Details Form",
			Pages: []export.Page{a.bankForm(nil)},
		}, nil
	case DocumentIndividualBill:
		if req.Person == nil {
			return export.Document{}, fmt.Errorf("assemble %s: person is required", req.Kind)
		}
		return export.Document{
			Title: "Individual Remuneration Bill",
			Pages: a.individualBill(req.Bill, *req.Person),
		}, nil
	case DocumentPersonalBills:
		people := req.Bill.People()
		if len(people) == 0 {
			return export.Document{}, fmt.Errorf("assemble %s: bill has no staff", req.Kind)
		}
		var pages []export.Page
		for _, ref := range people {
			pages = append(pages, a.individualBill(req.Bill, ref)...)
		}
		return export.Document{Title: "Personal Bills", Pages: pages}, nil
	default:
		return export.Document{}, fmt.Errorf("unknown document kind %q", req.Kind)
	}
}

func (a *DocumentAssembler) mainReport(b *models.Bill) export.Page {
	return export.Page{
		Letterhead: a.header(),
		Title:      examTitle(b),
		Blocks: []export.Block{
			{Kind: export.BlockFields, Numbered: true, Fields: []export.Field{
				{Label: "Name of the Department", Value: b.Department},
				{Label: "Class", Value: b.ClassName},
				{Label: "Total No. of present students", Value: strconv.Itoa(b.PresentStudents)},
				{Label: "Total No. of batches", Value: strconv.Itoa(b.TotalBatches)},
				{Label: "Duration of practical exam per batch", Value: hours(b.DurationPerBatch)},
			}},
			{Kind: export.BlockFields, Fields: a.examFields(b)},
			{Kind: export.BlockTable, Table: a.batchTable(b)},
			{Kind: export.BlockTable, Heading: "Statement of Staff Appointed and Remuneration Paid", Table: a.staffTable(b)},
			{Kind: export.BlockFields, Fields: []export.Field{
				{Label: "Balance Payable", Value: a.money.Format(b.BalancePayable) + "/-"},
				{Label: "(Amount in words)", Value: a.words(b.AmountInWords, b.TotalAmount)},
			}},
		},
		Signatures: []string{"In Charge", "Vice Principal", "Principal"},
	}
}

// batchTable labels columns with the stored batchNo, falling back to the position.
func (a *DocumentAssembler) batchTable(b *models.Bill) *export.Table {
	header := []string{"Batch No"}
	row := []string{"No. of Students Present"}
	sum := 0
	for i, batch := range b.Batches {
		label := strings.TrimSpace(batch.BatchNo)
		if label == "" {
			label = strconv.Itoa(i + 1)
		}
		header = append(header, label)
		row = append(row, strconv.Itoa(batch.StudentsPresent))
		sum += batch.StudentsPresent
	}
	header = append(header, "Total")
	row = append(row, strconv.Itoa(sum))

	widths := make([]float64, len(header))
	for i := range widths {
		widths[i] = 1
	}
	widths[0] = 2.5
	return &export.Table{Header: header, Rows: [][]string{row}, Widths: widths}
}

// staffTable prints one row per person; serial number and role appear on the
// first row of each role group only.
func (a *DocumentAssembler) staffTable(b *models.Bill) *export.Table {
	t := &export.Table{
		Header: []string{"Sr. No.", "Particulars", "Name", "Rate (" + a.money.Symbol + ")", "Total Amount (" + a.money.Symbol + ")"},
		Widths: []float64{0.8, 2.2, 2.6, 1.6, 1.8},
	}
	for i, sp := range b.StaffPayments {
		for j, p := range sp.Persons {
			serial, role := "", ""
			if j == 0 {
				serial, role = strconv.Itoa(i+1), sp.Role
			}
			t.Rows = append(t.Rows, []string{serial, role, p.Name, rateLabel(p), a.money.Format(p.TotalAmount)})
		}
	}
	t.Footer = []string{"", "", "", "Total", a.money.Format(b.TotalAmount)}
	return t
}

func (a *DocumentAssembler) individualBill(b *models.Bill, ref models.PersonRef) []export.Page {
	bd := a.calc.Breakdown(b.PresentStudents, ref.Person)
	base := "-"
	if bd.HasBase {
		base = a.money.Format(bd.Base)
	}

	details := &export.Table{
		Header: []string{"Particulars", "Amount"},
		Rows: [][]string{
			{"No. of Students Present", strconv.Itoa(bd.PresentStudents)},
			{"Rate", bd.Rate.Text},
			{"Base Amount", base},
			{"Extra Allowance", a.money.Format(bd.ExtraAllowance)},
		},
		Footer: []string{"Total", a.money.Format(bd.Total)},
		Widths: []float64{2, 1},
	}

	fields := []export.Field{
		{Label: "Name", Value: ref.Person.Name},
		{Label: "Designation", Value: ref.Role},
	}
	if ref.Person.Mobile != "" {
		fields = append(fields, export.Field{Label: "Mobile", Value: ref.Person.Mobile})
	}
	fields = append(fields,
		export.Field{Label: "Department", Value: b.Department},
		export.Field{Label: "Class", Value: b.ClassName},
	)
	fields = append(fields, a.examFields(b)...)

	pages := []export.Page{{
		Letterhead: a.header(),
		Title:      "Remuneration Bill: " + examTitle(b),
		Blocks: []export.Block{
			{Kind: export.BlockFields, Fields: fields},
			{Kind: export.BlockTable, Heading: "Payment Details", Table: details},
			{Kind: export.BlockParagraph, Heading: "Amount in words", Text: fmt.Sprintf(
				"Received %s (%s) towards %s remuneration.",
				a.money.Format(bd.Total), a.calc.AmountInWords(bd.Total), ref.Role,
			)},
		},
		Signatures: []string{"Staff", "In Charge", "Principal"},
	}}
	if a.includeBankForm {
		pages = append(pages, a.bankForm(&ref))
	}
	return pages
}

// bankForm is blank unless ref is given, in which case the payee lines are filled.
func (a *DocumentAssembler) bankForm(ref *models.PersonRef) export.Page {
	fields := []export.Field{
		{Label: "Account Holder Name"},
		{Label: "Bank Name"},
		{Label: "Account Number"},
		{Label: "IFSC Code"},
		{Label: "Mobile Number"},
		{Label: "Amount"},
		{Label: "Amount in Words"},
		{Label: "Nature of Payment (optional)"},
	}
	if ref != nil {
		fields[0].Value = ref.Person.Name
		fields[4].Value = ref.Person.Mobile
		fields[5].Value = a.money.Format(ref.Person.TotalAmount)
		fields[6].Value = a.calc.AmountInWords(ref.Person.TotalAmount)
		fields[7].Value = ref.Role + " remuneration"
	}
	return export.Page{
		Letterhead: a.header(),
		Title:      "Bank Details Form",
		Blocks:     []export.Block{{Kind: export.BlockForm, Fields: fields}},
		Signatures: []string{"Signature of Payee"},
	}
}

func (a *DocumentAssembler) examFields(b *models.Bill) []export.Field {
	fields := []export.Field{
		{Label: "Subject", Value: b.Subject},
		{Label: "Semester", Value: fmt.Sprintf("%d (%s)", b.Semester, b.ProgramLevel)},
		{Label: "Exam Session", Value: b.ExamSession},
	}
	if b.PaperNo != nil && *b.PaperNo != "" {
		fields = append(fields, export.Field{Label: "Paper No.", Value: *b.PaperNo})
	}
	if b.ExamStartTime != nil {
		fields = append(fields, export.Field{Label: "Exam Start", Value: a.date(*b.ExamStartTime)})
	}
	if b.ExamEndTime != nil {
		fields = append(fields, export.Field{Label: "Exam End", Value: a.date(*b.ExamEndTime)})
	}
	if !b.CreatedAt.IsZero() {
		fields = append(fields, export.Field{Label: "Date", Value: a.date(b.CreatedAt)})
	}
	return fields
}

func (a *DocumentAssembler) header() *export.Letterhead {
	lh := a.letterhead
	return &lh
}

func (a *DocumentAssembler) date(t time.Time) string {
	return t.In(a.location).Format(DocumentDateLayout)
}

func (a *DocumentAssembler) words(stored string, amount float64) string {
	if s := strings.TrimSpace(stored); s != "" {
		return s
	}
	return a.calc.AmountInWords(amount)
}

func examTitle(b *models.Bill) string {
	if b.ExamSession == "" {
		return fmt.Sprintf("%s Examination", b.ExamType)
	}
	return fmt.Sprintf("%s Examination (%s)", b.ExamType, b.ExamSession)
}

// rateLabel shows the rate and any extra allowance, e.g. "535 + 500".
func rateLabel(p models.StaffPerson) string {
	if p.Allowance() > 0 {
		return p.Rate + " + " + strconv.FormatFloat(p.Allowance(), 'f', -1, 64)
	}
	return p.Rate
}

func hours(h float64) string {
	v := strconv.FormatFloat(h, 'f', -1, 64)
	if h == 1 {
		return v + " hr"
	}
	return v + " hrs"
}
