package dto

import (
	"time"

	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
)

// CreateTeacherRequest registers a teacher under the calling administrator.
type CreateTeacherRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	Email      *string `json:"email" validate:"omitempty,email,max=120"`
	Phone      *string `json:"phone" validate:"omitempty,max=20"`
	Department *string `json:"department" validate:"omitempty,max=100"`
}

// UpdateTeacherRequest edits a teacher. The unique id cannot be changed.
type UpdateTeacherRequest struct {
	Name       string  `json:"name" validate:"required,max=100"`
	Email      *string `json:"email" validate:"omitempty,email,max=120"`
	Phone      *string `json:"phone" validate:"omitempty,max=20"`
	Department *string `json:"department" validate:"omitempty,max=100"`
	Active     *bool   `json:"active"`
}

// TeacherBadge describes where a teacher's QR image can be fetched.
type TeacherBadge struct {
	UniqueID    string    `json:"unique_id"`
	Payload     string    `json:"payload"`
	QRCode      string    `json:"qr_code"`
	DownloadURL string    `json:"download_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// TeacherRegistration is returned after a teacher is created.
type TeacherRegistration struct {
	Teacher      models.Teacher  `json:"teacher"`
	Badge        TeacherBadge    `json:"badge"`
	Notification *notify.Outcome `json:"notification,omitempty"`
}

// TeacherDetail is a teacher with the latest ledger entries.
type TeacherDetail struct {
	Teacher models.Teacher                  `json:"teacher"`
	Records []models.AttendanceRecordDetail `json:"records"`
}

// BadgeFile is the PNG served for a signed download link.
type BadgeFile struct {
	Filename string
	Content  []byte
}
