package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/export"
	"github.com/noah-isme/staff-remuneration-api/pkg/mailer"
)

type fakeRenderer struct {
	acquired   int
	closed     int
	renderErr  error
	acquireErr error
	docs       []export.Document
}

func (r *fakeRenderer) Acquire(ctx context.Context) (export.Session, error) {
	if r.acquireErr != nil {
		return nil, r.acquireErr
	}
	r.acquired++
	return &fakeSession{r: r}, nil
}

type fakeSession struct{ r *fakeRenderer }

func (s *fakeSession) Render(doc export.Document) ([]byte, error) {
	if s.r.renderErr != nil {
		return nil, s.r.renderErr
	}
	s.r.docs = append(s.r.docs, doc)
	return []byte("%PDF-1.3 " + doc.Title), nil
}

func (s *fakeSession) Close() error {
	s.r.closed++
	return nil
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeUserFinder struct {
	users map[string]*models.User
}

func (f *fakeUserFinder) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type reportFixture struct {
	svc      *ReportService
	repo     *mockBillRepo
	renderer *fakeRenderer
	mail     *fakeMailer
	metrics  *MetricsService
	billID   string
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	repo := newMockBillRepo()
	bills := newTestBillService(repo)
	bill, err := bills.Create(context.Background(), teacherClaims, practicalBillRequest())
	require.NoError(t, err)

	users := &fakeUserFinder{users: map[string]*models.User{
		"user-1": {ID: "user-1", Email: "teacher@example.com"},
	}}
	f := &reportFixture{repo: repo, renderer: &fakeRenderer{}, mail: &fakeMailer{}, metrics: NewMetricsService(), billID: bill.ID}
	f.svc = NewReportService(bills, users, NewDocumentAssembler(testInstitution(), false, nil), f.renderer, f.mail, f.metrics, zap.NewNop())
	return f
}

func TestReportDownloadMainReport(t *testing.T) {
	f := newReportFixture(t)

	doc, err := f.svc.Download(context.Background(), teacherClaims, f.billID, DocumentMainReport)
	require.NoError(t, err)
	assert.Equal(t, "bill_"+f.billID+".pdf", doc.Filename)
	assert.NotEmpty(t, doc.Data)
	assert.Equal(t, 1, f.renderer.acquired)
	assert.Equal(t, 1, f.renderer.closed)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().DocumentsRendered)
}

func TestReportDownloadPersonalBills(t *testing.T) {
	f := newReportFixture(t)

	doc, err := f.svc.Download(context.Background(), teacherClaims, f.billID, DocumentPersonalBills)
	require.NoError(t, err)
	assert.Equal(t, "personal_bills_"+f.billID+".pdf", doc.Filename)
	require.Len(t, f.renderer.docs, 1)
	assert.Len(t, f.renderer.docs[0].Pages, 3)
}

func TestReportDownloadBankForm(t *testing.T) {
	f := newReportFixture(t)

	doc, err := f.svc.DownloadBankForm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bank_detail_form.pdf", doc.Filename)
}

func TestReportDownloadMissingBillSkipsRender(t *testing.T) {
	f := newReportFixture(t)

	_, err := f.svc.Download(context.Background(), teacherClaims, "missing", DocumentMainReport)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
	assert.Zero(t, f.renderer.acquired)

	_, err = f.svc.Download(context.Background(), otherClaims, f.billID, DocumentMainReport)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
	assert.Zero(t, f.renderer.acquired)
}

func TestReportRenderFailureReleasesSession(t *testing.T) {
	f := newReportFixture(t)
	f.renderer.renderErr = errors.New("font missing")

	_, err := f.svc.Download(context.Background(), teacherClaims, f.billID, DocumentMainReport)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, appErrors.ErrRenderFailed.Code, appErr.Code)
	assert.Equal(t, 1, f.renderer.acquired)
	assert.Equal(t, 1, f.renderer.closed)
}

func TestReportAcquireFailure(t *testing.T) {
	f := newReportFixture(t)
	f.renderer.acquireErr = errors.New("shutting down")

	_, err := f.svc.DownloadBankForm(context.Background())
	assert.Equal(t, appErrors.ErrRenderFailed.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.renderer.closed)
}

func TestReportMailToSelf(t *testing.T) {
	f := newReportFixture(t)

	to, err := f.svc.Mail(context.Background(), teacherClaims, f.billID, DocumentMainReport, nil)
	require.NoError(t, err)
	assert.Equal(t, "teacher@example.com", to)
	require.Len(t, f.mail.sent, 1)
	msg := f.mail.sent[0]
	assert.Equal(t, "teacher@example.com", msg.To)
	assert.Equal(t, "Examination Remuneration Report", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "bill_"+f.billID+".pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().MailsSent)
}

func TestReportMailToOther(t *testing.T) {
	f := newReportFixture(t)

	to, err := f.svc.Mail(context.Background(), teacherClaims, f.billID, DocumentPersonalBills, strRef(" accounts@example.com "))
	require.NoError(t, err)
	assert.Equal(t, "accounts@example.com", to)
	assert.Equal(t, "Personal Remuneration Bills", f.mail.sent[0].Subject)
}

func TestReportMailRejectsBadAddressBeforeRendering(t *testing.T) {
	f := newReportFixture(t)
	finds := f.repo.finds

	_, err := f.svc.Mail(context.Background(), teacherClaims, f.billID, DocumentMainReport, strRef("not-an-email"))
	appErr := appErrors.FromError(err)
	require.Equal(t, http.StatusBadRequest, appErr.Status)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "email", appErr.Fields[0].Field)
	assert.Equal(t, finds, f.repo.finds)
	assert.Zero(t, f.renderer.acquired)
	assert.Empty(t, f.mail.sent)
}

func TestReportMailFailure(t *testing.T) {
	f := newReportFixture(t)
	f.mail.err = errors.New("smtp: 421 service not available")

	_, err := f.svc.Mail(context.Background(), teacherClaims, f.billID, DocumentMainReport, nil)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, appErrors.ErrMailFailed.Code, appErr.Code)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().MailsFailed)
}

func TestReportFilenames(t *testing.T) {
	assert.Equal(t, "bill_7.pdf", reportFilename(DocumentMainReport, "7"))
	assert.Equal(t, "personal_bills_7.pdf", reportFilename(DocumentPersonalBills, "7"))
	assert.Equal(t, "bank_detail_form.pdf", reportFilename(DocumentBankForm, ""))
}
