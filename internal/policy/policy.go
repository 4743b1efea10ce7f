// Package policy decides attendance status and check-out eligibility from the
// time of day. Everything here is pure; the current time is always passed in.
package policy

import (
	"fmt"
	"time"

	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/pkg/config"
)

// Windows are offsets from local midnight. All bounds are inclusive.
type Windows struct {
	OnTimeStart   time.Duration
	OnTimeEnd     time.Duration
	LateEnd       time.Duration
	CheckOutStart time.Duration
	CheckOutEnd   time.Duration
}

// DefaultWindows: on time 06:00-07:00, late until 10:00, check-out 14:00-18:00.
func DefaultWindows() Windows {
	return Windows{
		OnTimeStart:   6 * time.Hour,
		OnTimeEnd:     7 * time.Hour,
		LateEnd:       10 * time.Hour,
		CheckOutStart: 14 * time.Hour,
		CheckOutEnd:   18 * time.Hour,
	}
}

// Engine evaluates events against the configured windows in one location.
type Engine struct {
	windows  Windows
	location *time.Location
}

// New builds an engine. A nil location means time.Local.
func New(windows Windows, location *time.Location) *Engine {
	if location == nil {
		location = time.Local
	}
	return &Engine{windows: windows, location: location}
}

// FromConfig builds an engine from the attendance section of the configuration.
func FromConfig(cfg config.AttendanceConfig) *Engine {
	return New(Windows{
		OnTimeStart:   cfg.OnTimeStart,
		OnTimeEnd:     cfg.OnTimeEnd,
		LateEnd:       cfg.LateEnd,
		CheckOutStart: cfg.CheckOutStart,
		CheckOutEnd:   cfg.CheckOutEnd,
	}, cfg.Location)
}

// Location returns the zone used for day boundaries.
func (e *Engine) Location() *time.Location {
	return e.location
}

// Windows returns the configured windows.
func (e *Engine) Windows() Windows {
	return e.windows
}

// Classify maps a check-in instant to a status. It is total: anything outside
// the on-time and late windows is absent.
func (e *Engine) Classify(t time.Time) models.AttendanceStatus {
	tod := e.timeOfDay(t)
	switch {
	case tod >= e.windows.OnTimeStart && tod <= e.windows.OnTimeEnd:
		return models.AttendanceStatusOnTime
	case tod > e.windows.OnTimeEnd && tod <= e.windows.LateEnd:
		return models.AttendanceStatusLate
	default:
		return models.AttendanceStatusAbsent
	}
}

// CanCheckOut reports whether t falls inside the check-out window.
func (e *Engine) CanCheckOut(t time.Time) bool {
	tod := e.timeOfDay(t)
	return tod >= e.windows.CheckOutStart && tod <= e.windows.CheckOutEnd
}

// SignOutWindowClosed reports whether the missed sign-out sweep may run.
func (e *Engine) SignOutWindowClosed(t time.Time) bool {
	return e.timeOfDay(t) >= e.windows.CheckOutEnd
}

// Day returns midnight of t's calendar date in the engine location, expressed in UTC
// so it compares equal to DATE values scanned from the database.
func (e *Engine) Day(t time.Time) time.Time {
	y, m, d := t.In(e.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *Engine) timeOfDay(t time.Time) time.Duration {
	local := t.In(e.location)
	return time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
}

// CheckInMessage is shown on the station after a successful check-in.
func CheckInMessage(status models.AttendanceStatus, name string) string {
	switch status {
	case models.AttendanceStatusOnTime:
		return fmt.Sprintf("Welcome, %s! Have a great day!", name)
	case models.AttendanceStatusLate:
		return fmt.Sprintf("Welcome, %s! You are marked as late.", name)
	default:
		return fmt.Sprintf("Welcome, %s! You are marked as absent.", name)
	}
}

// CheckOutMessage is shown on the station after a successful check-out.
func CheckOutMessage(name string) string {
	return fmt.Sprintf("Thanks for your wonderful work today, %s! See you tomorrow.", name)
}

// AlreadyCheckedInMessage reports the existing check-in time.
func (e *Engine) AlreadyCheckedInMessage(at time.Time) string {
	return "Already checked in at " + e.Clock12(at)
}

// AlreadyCheckedOutMessage reports the existing check-out time.
func (e *Engine) AlreadyCheckedOutMessage(at time.Time) string {
	return "Already checked out at " + e.Clock12(at)
}

// CheckOutWindowMessage describes the check-out window.
func (e *Engine) CheckOutWindowMessage() string {
	return fmt.Sprintf("Check-out is only allowed between %s and %s",
		formatOffset(e.windows.CheckOutStart), formatOffset(e.windows.CheckOutEnd))
}

// Clock12 formats t as a 12-hour clock reading in the engine location.
func (e *Engine) Clock12(t time.Time) string {
	return t.In(e.location).Format("03:04 PM")
}

func formatOffset(d time.Duration) string {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(d).Format("3:04 PM")
}
