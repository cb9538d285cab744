package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-remuneration-api/internal/dto"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	appErrors "github.com/noah-isme/staff-remuneration-api/pkg/errors"
)

type billRepository interface {
	Create(ctx context.Context, bill *models.Bill) error
	FindByID(ctx context.Context, id string) (*models.Bill, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Bill, error)
	Update(ctx context.Context, bill *models.Bill) error
	Delete(ctx context.Context, id string) error
}

// BillService implements the bill lifecycle: validate, derive, persist.
type BillService struct {
	repo      billRepository
	validator *BillValidator
	calc      *AmountCalculator
	cache     *CacheService
	logger    *zap.Logger
}

// NewBillService creates a bill service. cache may be nil.
func NewBillService(repo billRepository, validator *BillValidator, calc *AmountCalculator, cache *CacheService, logger *zap.Logger) *BillService {
	if calc == nil {
		calc = NewAmountCalculator()
	}
	if validator == nil {
		validator = NewBillValidator(nil, calc, BillValidatorConfig{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillService{repo: repo, validator: validator, calc: calc, cache: cache, logger: logger}
}

// Create validates the submission and stores it for the caller.
func (s *BillService) Create(ctx context.Context, claims *models.JWTClaims, req dto.BillRequest) (*models.Bill, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req = s.calc.WithDerivedWords(req)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bill := &models.Bill{UserID: claims.UserID}
	applyBillRequest(bill, req, s.calc.ResolveAbsentOnCreate(req))
	if err := s.repo.Create(ctx, bill); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bill")
	}
	s.cache.Invalidate(ctx, OwnerBillsKey(bill.UserID))
	s.logger.Info("bill created", zap.String("bill_id", bill.ID), zap.String("user_id", bill.UserID))
	return bill, nil
}

// List returns the caller's bills, newest first.
func (s *BillService) List(ctx context.Context, claims *models.JWTClaims) ([]models.Bill, bool, error) {
	if claims == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	key := OwnerBillsKey(claims.UserID)
	var cached []models.Bill
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}
	bills, err := s.repo.ListByOwner(ctx, claims.UserID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bills")
	}
	s.cache.Set(ctx, key, bills)
	return bills, false, nil
}

// Get returns a bill the caller owns, or any bill for admins.
func (s *BillService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Bill, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var bill *models.Bill
	var cached models.Bill
	if s.cache.Get(ctx, BillKey(id), &cached) {
		bill = &cached
	} else {
		found, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
		}
		s.cache.Set(ctx, BillKey(id), found)
		bill = found
	}
	if !bill.OwnedBy(claims.UserID) && !claims.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this bill")
	}
	return bill, nil
}

// Update overlays patch onto the stored bill and re-validates the result.
// absentStudents is re-derived only when the patch carries both head counts.
func (s *BillService) Update(ctx context.Context, claims *models.JWTClaims, id string, patch dto.BillRequest) (*models.Bill, error) {
	stored, err := s.Get(ctx, claims, id)
	if err != nil {
		return nil, err
	}

	merged := dto.BillRequestFromModel(stored).Overlay(patch)
	if patch.TotalAmount != nil && (patch.AmountInWords == nil || strings.TrimSpace(*patch.AmountInWords) == "") {
		merged.AmountInWords = nil
	}
	absent := s.calc.ResolveAbsentOnUpdate(stored.AbsentStudents, patch)
	merged.AbsentStudents = &absent
	merged = s.calc.WithDerivedWords(merged)
	if err := s.validator.Validate(merged); err != nil {
		return nil, err
	}

	updated := *stored
	applyBillRequest(&updated, merged, absent)
	if err := s.repo.Update(ctx, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bill")
	}
	s.cache.Invalidate(ctx, BillKey(id), OwnerBillsKey(updated.UserID))
	return &updated, nil
}

// Delete removes a bill the caller owns.
func (s *BillService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	bill, err := s.Get(ctx, claims, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "bill not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete bill")
	}
	s.cache.Invalidate(ctx, BillKey(id), OwnerBillsKey(bill.UserID))
	s.logger.Info("bill deleted", zap.String("bill_id", id), zap.String("user_id", claims.UserID))
	return nil
}

// applyBillRequest copies a validated request onto bill.
func applyBillRequest(bill *models.Bill, req dto.BillRequest, absent int) {
	bill.Department = strings.TrimSpace(valueOr(req.Department, ""))
	bill.ClassName = strings.TrimSpace(valueOr(req.ClassName, ""))
	bill.Subject = strings.TrimSpace(valueOr(req.Subject, ""))
	bill.Semester = valueOr(req.Semester, 0)
	bill.ProgramLevel = models.ProgramLevel(valueOr(req.ProgramLevel, ""))
	bill.ExamSession = strings.TrimSpace(valueOr(req.ExamSession, ""))
	bill.ExamType = models.ExamType(valueOr(req.ExamType, ""))
	bill.TotalStudents = valueOr(req.TotalStudents, 0)
	bill.PresentStudents = valueOr(req.PresentStudents, 0)
	bill.AbsentStudents = absent
	bill.TotalBatches = valueOr(req.TotalBatches, 0)
	bill.DurationPerBatch = valueOr(req.DurationPerBatch, 0)
	bill.TotalAmount = valueOr(req.TotalAmount, 0)
	bill.BalancePayable = valueOr(req.BalancePayable, 0)
	bill.AmountInWords = strings.TrimSpace(valueOr(req.AmountInWords, ""))

	bill.PaperNo = nil
	if req.PaperNo != nil {
		if p := strings.TrimSpace(string(*req.PaperNo)); p != "" {
			bill.PaperNo = &p
		}
	}
	bill.ExamStartTime = examTime(req.ExamStartTime)
	bill.ExamEndTime = examTime(req.ExamEndTime)

	bill.Batches = make(models.Batches, 0, len(req.Batches))
	for _, b := range req.Batches {
		bill.Batches = append(bill.Batches, models.Batch{
			BatchNo:         strings.TrimSpace(string(valueOr(b.BatchNo, ""))),
			StudentsPresent: valueOr(b.StudentsPresent, 0),
		})
	}

	bill.StaffPayments = make(models.StaffPayments, 0, len(req.StaffPayments))
	for _, sp := range req.StaffPayments {
		payment := models.StaffPayment{Role: strings.TrimSpace(valueOr(sp.Role, ""))}
		for _, p := range sp.Persons {
			person := models.StaffPerson{
				Name:        strings.TrimSpace(valueOr(p.Name, "")),
				Rate:        strings.TrimSpace(string(valueOr(p.Rate, ""))),
				TotalAmount: valueOr(p.TotalAmount, 0),
				Mobile:      strings.TrimSpace(p.Mobile),
			}
			if p.ExtraAllowance != nil {
				allowance := *p.ExtraAllowance
				person.ExtraAllowance = &allowance
			}
			payment.Persons = append(payment.Persons, person)
		}
		bill.StaffPayments = append(bill.StaffPayments, payment)
	}
}

func examTime(raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	t, err := dto.ParseExamTime(strings.TrimSpace(*raw))
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
