package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teacher-attendance-api/internal/models"
)

const (
	dateLayout = "2006-01-02"

	attendanceColumns = `id, teacher_id, date, check_in_time, check_out_time, status, created_at, updated_at`

	attendanceDetailColumns = `ar.id, ar.teacher_id, ar.date, ar.check_in_time, ar.check_out_time, ar.status, ar.created_at, ar.updated_at,
		t.name AS teacher_name, t.unique_id AS teacher_unique_id, t.email AS teacher_email, t.phone AS teacher_phone`
)

// LedgerMutation receives the locked record for a teacher-day (nil when none exists)
// and returns the state to persist. Returning nil leaves the ledger untouched; an
// error aborts the transaction and is returned unchanged.
type LedgerMutation func(current *models.AttendanceRecord) (*models.AttendanceRecord, error)

// AttendanceRepository persists the attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Mutate runs a read-modify-write on the (teacher, day) entry inside one transaction
// holding a row lock. A concurrent first insert for the same key surfaces as
// ErrDuplicateEntry.
func (r *AttendanceRepository) Mutate(ctx context.Context, teacherID string, day time.Time, mutate LedgerMutation) (result *models.AttendanceRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin attendance tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	dayParam := day.Format(dateLayout)
	selectQuery := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE teacher_id = $1 AND date = $2::date FOR UPDATE`
	var current models.AttendanceRecord
	var locked *models.AttendanceRecord
	err = tx.GetContext(ctx, &current, selectQuery, teacherID, dayParam)
	switch {
	case err == nil:
		locked = &current
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	default:
		return nil, fmt.Errorf("lock attendance record: %w", err)
	}

	next, err := mutate(locked)
	if err != nil {
		return nil, err
	}
	if next == nil {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit attendance tx: %w", err)
		}
		return locked, nil
	}

	now := time.Now().UTC()
	var saved models.AttendanceRecord
	if locked == nil {
		if next.ID == "" {
			next.ID = uuid.NewString()
		}
		insertQuery := `INSERT INTO attendance_records (id, teacher_id, date, check_in_time, check_out_time, status, created_at, updated_at)
			VALUES ($1, $2, $3::date, $4, $5, $6, $7, $7)
			RETURNING ` + attendanceColumns
		err = tx.GetContext(ctx, &saved, insertQuery, next.ID, teacherID, dayParam, next.CheckInTime, next.CheckOutTime, next.Status, now)
		if err != nil {
			if isUniqueViolation(err) {
				err = ErrDuplicateEntry
				return nil, err
			}
			return nil, fmt.Errorf("insert attendance record: %w", err)
		}
	} else {
		updateQuery := `UPDATE attendance_records SET check_in_time = $2, check_out_time = $3, status = $4, updated_at = $5
			WHERE id = $1
			RETURNING ` + attendanceColumns
		err = tx.GetContext(ctx, &saved, updateQuery, locked.ID, next.CheckInTime, next.CheckOutTime, next.Status, now)
		if err != nil {
			return nil, fmt.Errorf("update attendance record: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit attendance tx: %w", err)
	}
	return &saved, nil
}

// FindByTeacherAndDate returns the ledger entry for a teacher-day.
func (r *AttendanceRepository) FindByTeacherAndDate(ctx context.Context, teacherID string, day time.Time) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance_records WHERE teacher_id = $1 AND date = $2::date`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, teacherID, day.Format(dateLayout)); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns records of the owner's teachers ordered by date then check-in time, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, error) {
	var conditions []string
	args := []interface{}{filter.OwnerID}
	conditions = append(conditions, "t.owner_id = $1")

	if filter.Date != nil {
		args = append(args, filter.Date.Format(dateLayout))
		conditions = append(conditions, fmt.Sprintf("ar.date = $%d::date", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("ar.teacher_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Teacher); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(t.name ILIKE $%d OR t.unique_id ILIKE $%d)", len(args), len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("ar.status = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM attendance_records ar JOIN teachers t ON t.id = ar.teacher_id WHERE %s ORDER BY ar.date DESC, ar.check_in_time DESC NULLS LAST`,
		attendanceDetailColumns, strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	records := make([]models.AttendanceRecordDetail, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// ListTeachersWithoutRecord returns active teachers with no ledger entry for day.
// An empty ownerID covers every owner.
func (r *AttendanceRepository) ListTeachersWithoutRecord(ctx context.Context, day time.Time, ownerID string) ([]models.Teacher, error) {
	query := `SELECT t.id, t.unique_id, t.name, t.email, t.phone, t.department, t.owner_id, t.active, t.created_at, t.updated_at
		FROM teachers t
		LEFT JOIN attendance_records ar ON ar.teacher_id = t.id AND ar.date = $1::date
		WHERE t.active = TRUE AND ar.id IS NULL`
	args := []interface{}{day.Format(dateLayout)}
	if ownerID != "" {
		query += " AND t.owner_id = $2"
		args = append(args, ownerID)
	}
	query += " ORDER BY t.name"

	teachers := make([]models.Teacher, 0)
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, fmt.Errorf("list teachers without record: %w", err)
	}
	return teachers, nil
}

// ListOpenRecords returns day entries of active teachers that have a check-in but no check-out.
// An empty ownerID covers every owner.
func (r *AttendanceRepository) ListOpenRecords(ctx context.Context, day time.Time, ownerID string) ([]models.AttendanceRecordDetail, error) {
	query := `SELECT ` + attendanceDetailColumns + `
		FROM attendance_records ar
		JOIN teachers t ON t.id = ar.teacher_id
		WHERE ar.date = $1::date AND ar.check_in_time IS NOT NULL AND ar.check_out_time IS NULL AND t.active = TRUE`
	args := []interface{}{day.Format(dateLayout)}
	if ownerID != "" {
		query += " AND t.owner_id = $2"
		args = append(args, ownerID)
	}
	query += " ORDER BY t.name"

	records := make([]models.AttendanceRecordDetail, 0)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list open attendance records: %w", err)
	}
	return records, nil
}

func escapeLike(raw string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(raw)
}
