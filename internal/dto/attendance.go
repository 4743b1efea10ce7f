package dto

import (
	"time"

	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
)

// ScanRequest is submitted by the station after reading a QR badge.
type ScanRequest struct {
	QRData string                  `json:"qr_data" validate:"required"`
	Action models.AttendanceAction `json:"action" validate:"required"`
	At     *time.Time              `json:"at,omitempty"`
}

// ManualEntryRequest records an event by typing the teacher's unique id.
type ManualEntryRequest struct {
	TeacherUniqueID string                  `json:"teacher_unique_id" validate:"required,alphanum"`
	Action          models.AttendanceAction `json:"action" validate:"required"`
	At              *time.Time              `json:"at,omitempty"`
}

// AttendanceEvent is the normalized input of the event processor. At is only
// honoured when time overrides are enabled.
type AttendanceEvent struct {
	UniqueID string
	At       *time.Time
}

// AttendanceResult is returned for every processed station event, including
// the idempotent ALREADY_CHECKED_* outcomes.
type AttendanceResult struct {
	Success      bool                           `json:"success"`
	Action       models.AttendanceAction        `json:"action"`
	Message      string                         `json:"message"`
	Status       models.AttendanceStatus        `json:"status,omitempty"`
	Record       *models.AttendanceRecordDetail `json:"record,omitempty"`
	Notification *notify.Outcome                `json:"notification,omitempty"`
}

// TeacherLookup is the public view of a teacher shown on the station.
type TeacherLookup struct {
	UniqueID   string  `json:"unique_id"`
	Name       string  `json:"name"`
	Department *string `json:"department,omitempty"`
}

// TeacherToday reports a teacher's record for the current day.
type TeacherToday struct {
	Teacher     TeacherLookup            `json:"teacher"`
	Date        string                   `json:"date"`
	Record      *models.AttendanceRecord `json:"record,omitempty"`
	CanCheckOut bool                     `json:"can_check_out"`
}

// SummaryQuery carries the raw summary filters from the query string.
type SummaryQuery struct {
	Date    string `form:"date"`
	Teacher string `form:"teacher"`
	Status  string `form:"status"`
}

// AttendanceSummary is the counted and filtered ledger view of one owner.
type AttendanceSummary struct {
	models.AttendanceCounts
	Date    string                          `json:"date,omitempty"`
	Records []models.AttendanceRecordDetail `json:"records"`
}

// AttendanceDashboard combines today's summary with the latest activity.
type AttendanceDashboard struct {
	Today  AttendanceSummary               `json:"today"`
	Recent []models.AttendanceRecordDetail `json:"recent"`
}

// ExportFile is a rendered summary export.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
