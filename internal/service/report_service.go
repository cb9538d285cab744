package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
	"github.com/noah-isme/staff-remuneration-api/pkg/export"
	"github.com/noah-isme/staff-remuneration-api/pkg/mailer"
)

type billReader interface {
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Bill, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RenderedDocument is a finished PDF ready to stream or attach.
type RenderedDocument struct {
	Filename string
	Data     []byte
}

// ReportService fetches bills, assembles documents, renders them and either
// returns the bytes or mails them. Failures are never retried.
type ReportService struct {
	bills     billReader
	users     userFinder
	assembler *DocumentAssembler
	renderer  export.Renderer
	mailer    mailer.Mailer
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewReportService constructs the report dispatcher.
func NewReportService(bills billReader, users userFinder, assembler *DocumentAssembler, renderer export.Renderer, m mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		bills:     bills,
		users:     users,
		assembler: assembler,
		renderer:  renderer,
		mailer:    m,
		metrics:   metrics,
		logger:    logger,
	}
}

// Download renders the main report or the personal bills of a bill.
func (s *ReportService) Download(ctx context.Context, claims *models.JWTClaims, id string, kind DocumentKind) (*RenderedDocument, error) {
	bill, err := s.bills.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	data, err := s.render(ctx, DocumentRequest{Kind: kind, Bill: bill})
	if err != nil {
		return nil, err
	}
	return &RenderedDocument{Filename: reportFilename(kind, id), Data: data}, nil
}

// DownloadBankForm renders the blank bank details form.
func (s *ReportService) DownloadBankForm(ctx context.Context) (*RenderedDocument, error) {
	data, err := s.render(ctx, DocumentRequest{Kind: DocumentBankForm})
	if err != nil {
		return nil, err
	}
	return &RenderedDocument{Filename: reportFilename(DocumentBankForm, ""), Data: data}, nil
}

// Mail renders a document and sends it to recipient, or to the caller's own
// address when recipient is nil. It returns the address used.
func (s *ReportService) Mail(ctx context.Context, claims *models.JWTClaims, id string, kind DocumentKind, recipient *string) (string, error) {
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	to, err := s.resolveRecipient(ctx, claims, recipient)
	if err != nil {
		return "", err
	}

	doc, err := s.Download(ctx, claims, id, kind)
	if err != nil {
		return "", err
	}

	msg := mailer.Message{
		To:      to,
		Subject: mailSubject(kind),
		HTML:    mailBody(kind, id),
		Attachments: []mailer.Attachment{{
			Filename:    doc.Filename,
			ContentType: "application/pdf",
			Data:        doc.Data,
		}},
	}
	err = s.mailer.Send(ctx, msg)
	s.metrics.RecordMail(string(kind), err)
	if err != nil {
		s.logger.Error("report mail failed", zap.String("bill_id", id), zap.String("kind", string(kind)), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrMailFailed.Code, appErrors.ErrMailFailed.Status, appErrors.ErrMailFailed.Message)
	}
	s.logger.Info("report mailed", zap.String("bill_id", id), zap.String("kind", string(kind)), zap.String("user_id", claims.UserID))
	return to, nil
}

func (s *ReportService) resolveRecipient(ctx context.Context, claims *models.JWTClaims, recipient *string) (string, error) {
	if recipient != nil {
		addr := strings.TrimSpace(*recipient)
		if !validEmail(addr) {
			return "", appErrors.Validation([]appErrors.FieldError{{Field: "email", Message: "must be a valid email address"}})
		}
		return addr, nil
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !validEmail(user.Email) {
		return "", appErrors.Validation([]appErrors.FieldError{{Field: "email", Message: "account has no valid email address"}})
	}
	return user.Email, nil
}

// render assembles and renders req inside one renderer session that is always released.
func (s *ReportService) render(ctx context.Context, req DocumentRequest) ([]byte, error) {
	start := time.Now()
	data, err := s.renderOnce(ctx, req)
	s.metrics.ObserveRender(string(req.Kind), err, time.Since(start))
	if err != nil {
		s.logger.Error("document render failed", zap.String("kind", string(req.Kind)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrRenderFailed.Code, appErrors.ErrRenderFailed.Status, appErrors.ErrRenderFailed.Message)
	}
	return data, nil
}

func (s *ReportService) renderOnce(ctx context.Context, req DocumentRequest) ([]byte, error) {
	doc, err := s.assembler.Assemble(req)
	if err != nil {
		return nil, err
	}
	session, err := s.renderer.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire renderer: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			s.logger.Warn("renderer release failed", zap.Error(cerr))
		}
	}()
	return session.Render(doc)
}

func reportFilename(kind DocumentKind, id string) string {
	switch kind {
	case DocumentPersonalBills:
		return fmt.Sprintf("personal_bills_%s.pdf", id)
	case DocumentBankForm:
		return "bank_detail_form.pdf"
	default:
		return fmt.Sprintf("bill_%s.pdf", id)
	}
}

func mailSubject(kind DocumentKind) string {
	if kind == DocumentPersonalBills {
		return "Personal Remuneration Bills"
	}
	return "Examination Remuneration Report"
}

func mailBody(kind DocumentKind, id string) string {
	what := "examination remuneration report"
	if kind == DocumentPersonalBills {
		what = "personal remuneration bills"
	}
	return fmt.Sprintf("<p>Hello,</p><p>Please find attached the %s for bill <b>%s</b>.</p>", what, html.EscapeString(id))
}
