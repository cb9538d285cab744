package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
)

func newTestOTPService(repo *mockOTPRepo, m *fakeMailer, now time.Time) *OTPService {
	svc := NewOTPService(repo, m, NewMetricsService(), nil, OTPConfig{})
	svc.now = func() time.Time { return now }
	return svc
}

func TestOTPIssueStoresAndMailsSixDigits(t *testing.T) {
	repo := newMockOTPRepo()
	m := &fakeMailer{}
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestOTPService(repo, m, now)

	require.NoError(t, svc.Issue(context.Background(), "asha@example.com", models.OTPPurposeLogin))

	record := repo.records["asha@example.com"]
	require.NotNil(t, record)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), record.Code)
	assert.Equal(t, now.Add(5*time.Minute), record.ExpiresAt)
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0].HTML, record.Code)
	assert.Contains(t, m.sent[0].HTML, "5 minutes")
	assert.EqualValues(t, 1, svc.metrics.Snapshot().MailsSent)
}

func TestOTPResetLivesTenMinutes(t *testing.T) {
	repo := newMockOTPRepo()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestOTPService(repo, &fakeMailer{}, now)

	require.NoError(t, svc.Issue(context.Background(), "asha@example.com", models.OTPPurposeReset))
	assert.Equal(t, now.Add(10*time.Minute), repo.records["asha@example.com"].ExpiresAt)
}

func TestOTPIssueReplacesPreviousCode(t *testing.T) {
	repo := newMockOTPRepo()
	repo.records["asha@example.com"] = &models.OTP{Email: "asha@example.com", Purpose: models.OTPPurposeLogin, Code: "111111", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newTestOTPService(repo, &fakeMailer{}, time.Now())

	require.NoError(t, svc.Issue(context.Background(), "asha@example.com", models.OTPPurposeReset))
	assert.Equal(t, models.OTPPurposeReset, repo.records["asha@example.com"].Purpose)
	assert.Len(t, repo.records, 1)
}

func TestOTPIssueMailFailure(t *testing.T) {
	svc := newTestOTPService(newMockOTPRepo(), &fakeMailer{err: errors.New("smtp down")}, time.Now())

	err := svc.Issue(context.Background(), "asha@example.com", models.OTPPurposeLogin)
	require.Error(t, err)
	assert.Equal(t, 500, appErrors.FromError(err).Status)
	assert.Equal(t, "error sending email", appErrors.FromError(err).Message)
}

func TestOTPVerify(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	seed := func() *mockOTPRepo {
		repo := newMockOTPRepo()
		repo.records["asha@example.com"] = &models.OTP{Email: "asha@example.com", Purpose: models.OTPPurposeLogin, Code: "123456", ExpiresAt: now.Add(time.Minute)}
		return repo
	}
	ctx := context.Background()

	repo := seed()
	svc := newTestOTPService(repo, &fakeMailer{}, now)
	assert.ErrorIs(t, svc.Verify(ctx, "asha@example.com", models.OTPPurposeLogin, "654321"), errOTPMismatch)
	assert.Contains(t, repo.records, "asha@example.com")
	require.NoError(t, svc.Verify(ctx, "asha@example.com", models.OTPPurposeLogin, " 123456 "))
	assert.NotContains(t, repo.records, "asha@example.com")
	assert.ErrorIs(t, svc.Verify(ctx, "asha@example.com", models.OTPPurposeLogin, "123456"), errOTPMissing)

	repo = seed()
	svc = newTestOTPService(repo, &fakeMailer{}, now)
	assert.ErrorIs(t, svc.Verify(ctx, "asha@example.com", models.OTPPurposeReset, "123456"), errOTPMissing)
	assert.Contains(t, repo.records, "asha@example.com")

	repo = seed()
	svc = newTestOTPService(repo, &fakeMailer{}, now.Add(2*time.Minute))
	assert.ErrorIs(t, svc.Verify(ctx, "asha@example.com", models.OTPPurposeLogin, "123456"), errOTPExpired)
	assert.Equal(t, []string{"asha@example.com"}, repo.deleted)
}
