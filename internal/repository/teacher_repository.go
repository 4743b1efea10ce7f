package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teacher-attendance-api/internal/models"
)

const teacherColumns = `id, unique_id, name, email, phone, department, owner_id, active, created_at, updated_at`

// TeacherRepository manages persistence for the identity registry.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns an owner's teachers matching filters along with total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers WHERE owner_id = $1"
	args := []interface{}{filter.OwnerID}
	var conditions []string

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(unique_id) LIKE $%d OR LOWER(COALESCE(email, '')) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "name",
		"unique_id":  "unique_id",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := models.ClampPageSize(filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", teacherColumns, base, column, order, size, offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}

	return teachers, total, nil
}

// FindOwned fetches a teacher by ID within an owner's scope.
func (r *TeacherRepository) FindOwned(ctx context.Context, ownerID, id string) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE id = $1 AND owner_id = $2`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id, ownerID); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindActiveByUniqueID resolves a badge token. Inactive teachers are not returned.
func (r *TeacherRepository) FindActiveByUniqueID(ctx context.Context, uniqueID string) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE unique_id = $1 AND active = TRUE`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, uniqueID); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ExistsByUniqueID reports whether a token was ever issued, including to removed teachers.
func (r *TeacherRepository) ExistsByUniqueID(ctx context.Context, uniqueID string) (bool, error) {
	const query = "SELECT 1 FROM teachers WHERE unique_id = $1 LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, uniqueID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher unique id: %w", err)
	}
	return true, nil
}

// ExistsByName checks whether the owner already has a teacher with this name.
func (r *TeacherRepository) ExistsByName(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM teachers WHERE owner_id = $1 AND LOWER(name) = LOWER($2)"
	args := []interface{}{ownerID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher name: %w", err)
	}
	return true, nil
}

// Create inserts a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, unique_id, name, email, phone, department, owner_id, active, created_at, updated_at)
		VALUES (:id, :unique_id, :name, :email, :phone, :department, :owner_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update modifies the mutable fields of a teacher. unique_id and owner_id never change.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET name = :name, email = :email, phone = :phone, department = :department, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// Deactivate sets a teacher's active flag to false. Ledger rows are kept.
func (r *TeacherRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE teachers SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate teacher: %w", err)
	}
	return nil
}

// Purge deletes a teacher together with its ledger rows and returns the number of
// attendance records removed.
func (r *TeacherRepository) Purge(ctx context.Context, id string) (removed int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge teacher: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM attendance_records WHERE teacher_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("purge attendance records: %w", err)
	}
	removed, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge attendance records: %w", err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("purge teacher: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge teacher: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge teacher: %w", err)
	}
	return removed, nil
}
