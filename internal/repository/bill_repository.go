package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/staff-remuneration-api/internal/models"
)

const billColumns = `id, user_id, department, class_name, subject, semester, program_level, exam_session, exam_type, paper_no,
total_students, present_students, absent_students, total_batches, duration_per_batch, batches, staff_payments,
total_amount, balance_payable, amount_in_words, exam_start_time, exam_end_time, created_at, updated_at`

// BillRepository persists bills in the bills table. Batches and staff payments are JSONB columns.
type BillRepository struct {
	db *sqlx.DB
}

// NewBillRepository creates a new instance of BillRepository.
func NewBillRepository(db *sqlx.DB) *BillRepository {
	return &BillRepository{db: db}
}

// Create inserts a bill, filling id and timestamps when empty.
func (r *BillRepository) Create(ctx context.Context, bill *models.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = now
	}
	bill.UpdatedAt = now

	const query = `INSERT INTO bills (id, user_id, department, class_name, subject, semester, program_level, exam_session, exam_type, paper_no,
total_students, present_students, absent_students, total_batches, duration_per_batch, batches, staff_payments,
total_amount, balance_payable, amount_in_words, exam_start_time, exam_end_time, created_at, updated_at)
VALUES (:id, :user_id, :department, :class_name, :subject, :semester, :program_level, :exam_session, :exam_type, :paper_no,
:total_students, :present_students, :absent_students, :total_batches, :duration_per_batch, :batches, :staff_payments,
:total_amount, :balance_payable, :amount_in_words, :exam_start_time, :exam_end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, bill); err != nil {
		return fmt.Errorf("create bill: %w", err)
	}
	return nil
}

// FindByID returns a bill or sql.ErrNoRows.
func (r *BillRepository) FindByID(ctx context.Context, id string) (*models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1 LIMIT 1`
	var bill models.Bill
	if err := r.db.GetContext(ctx, &bill, query, id); err != nil {
		if err = notFoundIfMalformedID(err); errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find bill by id: %w", err)
	}
	return &bill, nil
}

// ListByOwner returns the owner's bills, newest first.
func (r *BillRepository) ListByOwner(ctx context.Context, userID string) ([]models.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE user_id = $1 ORDER BY created_at DESC`
	bills := make([]models.Bill, 0)
	if err := r.db.SelectContext(ctx, &bills, query, userID); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// Update overwrites every mutable column of the bill.
func (r *BillRepository) Update(ctx context.Context, bill *models.Bill) error {
	bill.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bills SET department = :department, class_name = :class_name, subject = :subject, semester = :semester,
program_level = :program_level, exam_session = :exam_session, exam_type = :exam_type, paper_no = :paper_no,
total_students = :total_students, present_students = :present_students, absent_students = :absent_students,
total_batches = :total_batches, duration_per_batch = :duration_per_batch, batches = :batches, staff_payments = :staff_payments,
total_amount = :total_amount, balance_payable = :balance_payable, amount_in_words = :amount_in_words,
exam_start_time = :exam_start_time, exam_end_time = :exam_end_time, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, bill)
	if err != nil {
		if err = notFoundIfMalformedID(err); errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("update bill: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a bill, returning sql.ErrNoRows when nothing matched.
func (r *BillRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		if err = notFoundIfMalformedID(err); errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("delete bill: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
