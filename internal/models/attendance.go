package models

import (
	"strings"
	"time"
)

// AttendanceStatus is derived from the check-in time by the policy engine.
type AttendanceStatus string

const (
	AttendanceStatusOnTime AttendanceStatus = "ON_TIME"
	AttendanceStatusLate   AttendanceStatus = "LATE"
	AttendanceStatusAbsent AttendanceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusOnTime, AttendanceStatusLate, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// Label returns the human readable form used in messages and exports.
func (s AttendanceStatus) Label() string {
	switch s {
	case AttendanceStatusOnTime:
		return "On Time"
	case AttendanceStatusLate:
		return "Late"
	case AttendanceStatusAbsent:
		return "Absent"
	default:
		return string(s)
	}
}

// ParseAttendanceStatus accepts both the stored form ("ON_TIME") and the
// label form ("On Time"), case-insensitively.
func ParseAttendanceStatus(raw string) (AttendanceStatus, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	if normalized == "ONTIME" {
		normalized = string(AttendanceStatusOnTime)
	}
	status := AttendanceStatus(normalized)
	return status, status.Valid()
}

// AttendanceAction names the two station events.
type AttendanceAction string

const (
	ActionCheckIn  AttendanceAction = "check_in"
	ActionCheckOut AttendanceAction = "check_out"
)

// Valid returns true when the action is supported.
func (a AttendanceAction) Valid() bool {
	return a == ActionCheckIn || a == ActionCheckOut
}

// AttendanceRecord is the ledger entry for one teacher on one calendar date.
// CheckOutTime is only ever set when CheckInTime is set.
type AttendanceRecord struct {
	ID           string           `db:"id" json:"id"`
	TeacherID    string           `db:"teacher_id" json:"teacher_id"`
	Date         time.Time        `db:"date" json:"date"`
	CheckInTime  *time.Time       `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime *time.Time       `db:"check_out_time" json:"check_out_time,omitempty"`
	Status       AttendanceStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// CheckedIn reports whether a check-in was recorded.
func (r *AttendanceRecord) CheckedIn() bool {
	return r != nil && r.CheckInTime != nil
}

// CheckedOut reports whether a check-out was recorded.
func (r *AttendanceRecord) CheckedOut() bool {
	return r != nil && r.CheckOutTime != nil
}

// AttendanceRecordDetail extends the record with teacher metadata.
type AttendanceRecordDetail struct {
	AttendanceRecord
	TeacherName     string  `db:"teacher_name" json:"teacher_name"`
	TeacherUniqueID string  `db:"teacher_unique_id" json:"teacher_unique_id"`
	TeacherEmail    *string `db:"teacher_email" json:"-"`
	TeacherPhone    *string `db:"teacher_phone" json:"-"`
}

// AttendanceFilter scopes reporting queries to one owner.
type AttendanceFilter struct {
	OwnerID   string
	Date      *time.Time
	Teacher   string
	TeacherID string
	Status    *AttendanceStatus
	Limit     int
}

// AttendanceCounts tallies records by status.
type AttendanceCounts struct {
	Total  int `json:"total_records"`
	OnTime int `json:"on_time_count"`
	Late   int `json:"late_count"`
	Absent int `json:"absent_count"`
}

// Add counts a single status.
func (c *AttendanceCounts) Add(status AttendanceStatus) {
	c.Total++
	switch status {
	case AttendanceStatusOnTime:
		c.OnTime++
	case AttendanceStatusLate:
		c.Late++
	case AttendanceStatusAbsent:
		c.Absent++
	}
}
