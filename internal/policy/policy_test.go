package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/teacher-attendance-api/internal/models"
)

func at(hour, min, sec, nsec int) time.Time {
	return time.Date(2024, 3, 5, hour, min, sec, nsec, time.UTC)
}

func TestClassifyBoundaries(t *testing.T) {
	engine := New(DefaultWindows(), time.UTC)

	cases := []struct {
		name string
		when time.Time
		want models.AttendanceStatus
	}{
		{"before on-time window", at(5, 59, 59, 0), models.AttendanceStatusAbsent},
		{"on-time start", at(6, 0, 0, 0), models.AttendanceStatusOnTime},
		{"mid on-time", at(6, 30, 0, 0), models.AttendanceStatusOnTime},
		{"on-time end", at(7, 0, 0, 0), models.AttendanceStatusOnTime},
		{"half second after on-time end", at(7, 0, 0, 500_000_000), models.AttendanceStatusLate},
		{"one second after on-time end", at(7, 0, 1, 0), models.AttendanceStatusLate},
		{"late end", at(10, 0, 0, 0), models.AttendanceStatusLate},
		{"after late end", at(10, 0, 1, 0), models.AttendanceStatusAbsent},
		{"afternoon", at(15, 0, 0, 0), models.AttendanceStatusAbsent},
		{"midnight", at(0, 0, 0, 0), models.AttendanceStatusAbsent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, engine.Classify(tc.when))
		})
	}
}

func TestCanCheckOutBoundaries(t *testing.T) {
	engine := New(DefaultWindows(), time.UTC)

	assert.False(t, engine.CanCheckOut(at(13, 59, 59, 0)))
	assert.True(t, engine.CanCheckOut(at(14, 0, 0, 0)))
	assert.True(t, engine.CanCheckOut(at(16, 0, 0, 0)))
	assert.True(t, engine.CanCheckOut(at(18, 0, 0, 0)))
	assert.False(t, engine.CanCheckOut(at(18, 0, 1, 0)))
	assert.False(t, engine.CanCheckOut(at(6, 30, 0, 0)))
}

func TestSignOutWindowClosed(t *testing.T) {
	engine := New(DefaultWindows(), time.UTC)

	assert.False(t, engine.SignOutWindowClosed(at(17, 59, 59, 0)))
	assert.True(t, engine.SignOutWindowClosed(at(18, 0, 0, 0)))
	assert.True(t, engine.SignOutWindowClosed(at(23, 0, 0, 0)))
}

func TestClassifyUsesEngineLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	engine := New(DefaultWindows(), jakarta)

	// 23:30 UTC is 06:30 the next morning in UTC+7.
	instant := time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, models.AttendanceStatusOnTime, engine.Classify(instant))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), engine.Day(instant))
}

func TestMessages(t *testing.T) {
	engine := New(DefaultWindows(), time.UTC)

	assert.Equal(t, "Welcome, Ana! Have a great day!", CheckInMessage(models.AttendanceStatusOnTime, "Ana"))
	assert.Equal(t, "Welcome, Ana! You are marked as late.", CheckInMessage(models.AttendanceStatusLate, "Ana"))
	assert.Equal(t, "Welcome, Ana! You are marked as absent.", CheckInMessage(models.AttendanceStatusAbsent, "Ana"))
	assert.Equal(t, "Thanks for your wonderful work today, Ana! See you tomorrow.", CheckOutMessage("Ana"))
	assert.Equal(t, "Already checked in at 06:30 AM", engine.AlreadyCheckedInMessage(at(6, 30, 0, 0)))
	assert.Equal(t, "Already checked out at 04:05 PM", engine.AlreadyCheckedOutMessage(at(16, 5, 0, 0)))
	assert.Equal(t, "Check-out is only allowed between 2:00 PM and 6:00 PM", engine.CheckOutWindowMessage())
}

func TestFixedClock(t *testing.T) {
	clock := NewFixedClock(at(6, 0, 0, 0))
	assert.Equal(t, at(6, 0, 0, 0), clock.Now())

	clock.Set(at(9, 0, 0, 0))
	assert.Equal(t, at(9, 0, 0, 0), clock.Now())
}
