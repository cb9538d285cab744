package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/imagehost"
	"github.com/noah-isme/staff-remuneration-api/pkg/mailer"
)

type mockUserRepo struct {
	users     map[string]*models.User
	createErr error
	seq       int
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	for _, u := range m.users {
		if match(u) {
			copyUser := *u
			return &copyUser, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *mockUserRepo) FindByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.MobileNumber == mobile })
}

func (m *mockUserRepo) FindConflict(ctx context.Context, email, mobile, excludeID string) (*models.User, error) {
	return m.find(func(u *models.User) bool {
		return u.ID != excludeID && (u.Email == email || u.MobileNumber == mobile)
	})
}

func (m *mockUserRepo) TeacherIDTaken(ctx context.Context, teacherID, excludeID string) (bool, error) {
	_, err := m.find(func(u *models.User) bool {
		return u.ID != excludeID && u.TeacherID != nil && *u.TeacherID == teacherID
	})
	return err == nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	user.ID = "new-user-" + string(rune('0'+m.seq))
	copyUser := *user
	m.users[user.ID] = &copyUser
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copyUser := *user
	m.users[user.ID] = &copyUser
	return nil
}

func (m *mockUserRepo) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string, updatedAt time.Time) error {
	for _, u := range m.users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			u.UpdatedAt = updatedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockOTPRepo struct {
	records map[string]*models.OTP
	deleted []string
}

func newMockOTPRepo() *mockOTPRepo {
	return &mockOTPRepo{records: map[string]*models.OTP{}}
}

func (m *mockOTPRepo) Upsert(ctx context.Context, otp *models.OTP) error {
	copyOTP := *otp
	m.records[otp.Email] = &copyOTP
	return nil
}

func (m *mockOTPRepo) FindByEmail(ctx context.Context, email string) (*models.OTP, error) {
	record, ok := m.records[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copyOTP := *record
	return &copyOTP, nil
}

func (m *mockOTPRepo) Delete(ctx context.Context, email string) error {
	delete(m.records, email)
	m.deleted = append(m.deleted, email)
	return nil
}

type mockAudit struct {
	logs []*models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAudit) actions() []string {
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

type fakeImageHost struct {
	uploaded []string
	deleted  []string
}

func (f *fakeImageHost) Upload(ctx context.Context, filename string, r io.Reader) (*imagehost.Image, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	id := "profiles/" + filename
	f.uploaded = append(f.uploaded, id)
	return &imagehost.Image{URL: "https://img.example.com/" + id, PublicID: id}, nil
}

func (f *fakeImageHost) Delete(ctx context.Context, publicID string) error {
	f.deleted = append(f.deleted, publicID)
	return nil
}

const testSecret = "test-secret"

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func seededTeacher(t *testing.T) *models.User {
	teacherID, department := "T-100", "Computer Science"
	return &models.User{
		ID:           "user-1",
		Role:         models.RoleTeacher,
		Name:         "Asha Kulkarni",
		Email:        "asha@example.com",
		MobileNumber: "9876543210",
		PasswordHash: hashPassword(t, "secret123"),
		TeacherID:    &teacherID,
		Department:   &department,
	}
}

type authFixture struct {
	svc    *AuthService
	users  *mockUserRepo
	otps   *mockOTPRepo
	otpSvc *OTPService
	mail   *fakeMailer
	audit  *mockAudit
	images *fakeImageHost
}

func newAuthFixture(t *testing.T, users ...*models.User) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  newMockUserRepo(users...),
		otps:   newMockOTPRepo(),
		mail:   &fakeMailer{},
		audit:  &mockAudit{},
		images: &fakeImageHost{},
	}
	f.otpSvc = NewOTPService(f.otps, f.mail, nil, zap.NewNop(), OTPConfig{})
	f.svc = NewAuthService(f.users, f.audit, f.otpSvc, f.images, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: testSecret, Issuer: "staff-remuneration-api"})
	return f
}

func teacherSignup() dto.SignupRequest {
	return dto.SignupRequest{
		Name:         "Rahul Lamble",
		Email:        "Rahul@Example.com ",
		MobileNumber: "9123456780",
		Password:     "secret123",
		Role:         "teacher",
		TeacherID:    "T-200",
		Department:   "Computer Science",
		ClientInfo:   dto.ClientInfo{IP: "10.0.0.1", UserAgent: "test"},
	}
}

func TestSignupCreatesUserAndToken(t *testing.T) {
	f := newAuthFixture(t)

	resp, err := f.svc.Signup(context.Background(), teacherSignup(), &ImageUpload{Filename: "me.png", Reader: strings.NewReader("png")})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(86400), resp.ExpiresIn)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)

	stored := f.users.users[resp.User.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "rahul@example.com", stored.Email)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	require.NotNil(t, stored.ProfileImagePublicID)
	assert.Equal(t, "profiles/me.png", *stored.ProfileImagePublicID)
	assert.Equal(t, []string{models.AuditActionSignup}, f.audit.actions())
	assert.Equal(t, "10.0.0.1", f.audit.logs[0].IPAddress)

	claims, err := f.svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "rahul@example.com", claims.Email)
}

func TestSignupConflicts(t *testing.T) {
	f := newAuthFixture(t, seededTeacher(t))

	req := teacherSignup()
	req.Email = "asha@example.com"
	_, err := f.svc.Signup(context.Background(), req, nil)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "email is already registered", appErr.Message)

	req = teacherSignup()
	req.MobileNumber = "9876543210"
	_, err = f.svc.Signup(context.Background(), req, nil)
	assert.Equal(t, "mobile number is already registered", appErrors.FromError(err).Message)

	req = teacherSignup()
	req.TeacherID = "T-100"
	_, err = f.svc.Signup(context.Background(), req, nil)
	appErr = appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "teacher id is already registered", appErr.Message)
	assert.Len(t, f.users.users, 1)
}

func TestSignupValidation(t *testing.T) {
	f := newAuthFixture(t)

	req := teacherSignup()
	req.TeacherID = ""
	req.Department = "Astrology"
	_, err := f.svc.Signup(context.Background(), req, nil)
	assert.ElementsMatch(t, []string{"teacherId", "department"}, fieldNames(t, err))

	admin := teacherSignup()
	admin.Role = "admin"
	admin.TeacherID, admin.Department = "", ""
	resp, err := f.svc.Signup(context.Background(), admin, nil)
	require.NoError(t, err)
	assert.Nil(t, f.users.users[resp.User.ID].TeacherID)
}

func TestSignupDiscardsImageWhenCreateFails(t *testing.T) {
	f := newAuthFixture(t)
	f.users.createErr = errors.New("db down")

	_, err := f.svc.Signup(context.Background(), teacherSignup(), &ImageUpload{Filename: "me.png", Reader: strings.NewReader("png")})
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
	assert.Equal(t, []string{"profiles/me.png"}, f.images.deleted)
}

func TestPasswordLogins(t *testing.T) {
	f := newAuthFixture(t, seededTeacher(t))
	ctx := context.Background()

	resp, err := f.svc.LoginEmailPassword(ctx, dto.EmailPasswordLoginRequest{Email: " ASHA@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.User.ID)

	resp, err = f.svc.LoginMobilePassword(ctx, dto.MobilePasswordLoginRequest{MobileNumber: "9876543210", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "Asha Kulkarni", resp.User.Name)

	_, err = f.svc.LoginEmailPassword(ctx, dto.EmailPasswordLoginRequest{Email: "nobody@example.com", Password: "secret123"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "user not found", appErr.Message)

	_, err = f.svc.LoginMobilePassword(ctx, dto.MobilePasswordLoginRequest{MobileNumber: "9876543210", Password: "wrong"})
	appErr = appErrors.FromError(err)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
	assert.Equal(t, "invalid password", appErr.Message)

	assert.Equal(t, []string{models.AuditActionLogin, models.AuditActionLogin}, f.audit.actions())
}

func TestOTPLoginFlow(t *testing.T) {
	f := newAuthFixture(t, seededTeacher(t))
	ctx := context.Background()

	require.NoError(t, f.svc.SendLoginOTP(ctx, dto.SendOTPRequest{Email: "asha@example.com"}))
	record := f.otps.records["asha@example.com"]
	require.NotNil(t, record)
	assert.Len(t, record.Code, 6)
	assert.Equal(t, models.OTPPurposeLogin, record.Purpose)
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "Your OTP Code", f.mail.sent[0].Subject)
	assert.Contains(t, f.mail.sent[0].HTML, record.Code)

	resp, err := f.svc.LoginEmailOTP(ctx, dto.EmailOTPLoginRequest{Email: "asha@example.com", OTP: record.Code})
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Empty(t, f.otps.records)

	_, err = f.svc.LoginEmailOTP(ctx, dto.EmailOTPLoginRequest{Email: "asha@example.com", OTP: record.Code})
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
	assert.Equal(t, appErrors.ErrInvalidOTP.Code, appErr.Code)
}

func TestOTPLoginNormalisesEmail(t *testing.T) {
	f := newAuthFixture(t, seededTeacher(t))
	ctx := context.Background()

	require.NoError(t, f.svc.SendLoginOTP(ctx, dto.SendOTPRequest{Email: "  Asha@Example.com "}))
	record := f.otps.records["asha@example.com"]
	require.NotNil(t, record)

	resp, err := f.svc.LoginEmailOTP(ctx, dto.EmailOTPLoginRequest{Email: " ASHA@example.com", OTP: record.Code})
	require.NoError(t, err)
	assert.Equal(t, "user-1", resp.User.ID)
}

func TestSendLoginOTPUnknownUser(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.SendLoginOTP(context.Background(), dto.SendOTPRequest{Email: "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
	assert.Empty(t, f.mail.sent)
}

func TestOTPLoginWrongAndExpiredCodes(t *testing.T) {
	f := newAuthFixture(t, seededTeacher(t))
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	f.otpSvc.now = func() time.Time { return now }

	require.NoError(t, f.svc.SendLoginOTP(ctx, dto.SendOTPRequest{Email: "asha@example.com"}))
	code := f.otps.records["asha@example.com"].Code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err := f.svc.LoginEmailOTP(ctx, dto.EmailOTPLoginRequest{Email: "asha@example.com", OTP: wrong})
	assert.Equal(t, appErrors.ErrInvalidOTP.Code, appErrors.FromError(err).Code)
	assert.Contains(t, f.otps.records, "asha@example.com")

	now = now.Add(5 * time.Minute)
	_, err = f.svc.LoginEmailOTP(ctx, dto.EmailOTPLoginRequest{Email: "asha@example.com", OTP: code})
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
	assert.Equal(t, appErrors.ErrExpiredOTP.Code, appErr.Code)
	assert.Empty(t, f.otps.records)
}

func TestOTPPurposesDoNotMix(t *testing.T) {
	f := newAuthFixture(t, seededTeacher(t))
	ctx := context.Background()

	require.NoError(t, f.otpSvc.Issue(ctx, "asha@example.com", models.OTPPurposeReset))
	code := f.otps.records["asha@example.com"].Code

	_, err := f.svc.LoginEmailOTP(ctx, dto.EmailOTPLoginRequest{Email: "asha@example.com", OTP: code})
	assert.Equal(t, appErrors.ErrInvalidOTP.Code, appErrors.FromError(err).Code)
	assert.Contains(t, f.otps.records, "asha@example.com")
}

func TestSendLoginOTPMailFailure(t *testing.T) {
	f := newAuthFixture(t, seededTeacher(t))
	f.mail.err = errors.New("smtp down")

	err := f.svc.SendLoginOTP(context.Background(), dto.SendOTPRequest{Email: "asha@example.com"})
	assert.Equal(t, appErrors.ErrMailFailed.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	f := newAuthFixture(t, seededTeacher(t))
	other := NewAuthService(f.users, nil, f.otpSvc, nil, nil, zap.NewNop(), AuthConfig{AccessTokenSecret: "another-secret"})

	resp, err := other.LoginEmailPassword(context.Background(), dto.EmailPasswordLoginRequest{Email: "asha@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = f.svc.ValidateToken(resp.Token)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

var _ mailer.Mailer = (*fakeMailer)(nil)
