package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionRegister        = "REGISTER"
	AuditActionTeacherCreate   = "TEACHER_CREATE"
	AuditActionTeacherUpdate   = "TEACHER_UPDATE"
	AuditActionTeacherRemove   = "TEACHER_REMOVE"
	AuditActionTeacherPurge    = "TEACHER_PURGE"
	AuditActionBadgeReissue    = "BADGE_REISSUE"
	AuditActionSweepSignIn     = "SWEEP_MISSED_SIGN_IN"
	AuditActionSweepSignOut    = "SWEEP_MISSED_SIGN_OUT"
	AuditResourceUser          = "user"
	AuditResourceTeacher       = "teacher"
	AuditResourceAttendanceDay = "attendance_day"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
