package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-attendance-api/internal/dto"
	"github.com/noah-isme/teacher-attendance-api/internal/models"
	"github.com/noah-isme/teacher-attendance-api/internal/policy"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
)

type stubSweepLedger struct {
	missing    []models.Teacher
	open       []models.AttendanceRecordDetail
	err        error
	lastDay    time.Time
	lastOwner  string
	openCalled bool
}

func (s *stubSweepLedger) ListTeachersWithoutRecord(ctx context.Context, day time.Time, ownerID string) ([]models.Teacher, error) {
	s.lastDay, s.lastOwner = day, ownerID
	return s.missing, s.err
}

func (s *stubSweepLedger) ListOpenRecords(ctx context.Context, day time.Time, ownerID string) ([]models.AttendanceRecordDetail, error) {
	s.lastDay, s.lastOwner = day, ownerID
	s.openCalled = true
	return s.open, s.err
}

func strPtr(v string) *string { return &v }

func newSweepFixture(now time.Time, ledger *stubSweepLedger, notifiers ...notify.Notifier) (*SweepService, *policy.FixedClock) {
	engine := policy.New(policy.DefaultWindows(), wib)
	clock := policy.NewFixedClock(now)
	dispatcher := NewNotificationService(notifiers, time.Second, nil, nil)
	return NewSweepService(ledger, engine, clock, dispatcher, NewMetricsService(), nil), clock
}

func TestMissedSignIn(t *testing.T) {
	ledger := &stubSweepLedger{missing: []models.Teacher{
		{ID: "t1", UniqueID: "a1", Name: "Ana", Email: strPtr("ana@school.org")},
		{ID: "t2", UniqueID: "b2", Name: "Budi", Email: strPtr("budi@school.org")},
		{ID: "t3", UniqueID: "c3", Name: "Citra"},
	}}
	mailer := &fakeNotifier{channel: notify.ChannelEmail}
	svc, _ := newSweepFixture(at(10, 30, 0), ledger, mailer)

	result, err := svc.MissedSignIn(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, dto.SweepMissedSignIn, result.Kind)
	assert.Equal(t, "2024-03-05", result.Date)
	assert.Equal(t, 3, result.Evaluated)
	assert.Equal(t, 2, result.Notified)
	assert.Equal(t, 1, result.SkippedNoContact)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, "2024-03-05", ledger.lastDay.Format(dateLayout))
	assert.Equal(t, "", ledger.lastOwner)
	assert.Equal(t, notify.KindMissedSignIn, mailer.last().Kind)
}

func TestMissedSignInCountsFailures(t *testing.T) {
	ledger := &stubSweepLedger{missing: []models.Teacher{{ID: "t1", UniqueID: "a1", Name: "Ana", Email: strPtr("ana@school.org")}}}
	mailer := &fakeNotifier{channel: notify.ChannelEmail, err: errors.New("smtp down")}
	svc, _ := newSweepFixture(at(10, 30, 0), ledger, mailer)

	result, err := svc.MissedSignIn(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Notified)
	assert.Equal(t, "owner-1", ledger.lastOwner)
}

func TestMissedSignOutWaitsForWindowToClose(t *testing.T) {
	checkIn := at(6, 40, 0)
	ledger := &stubSweepLedger{open: []models.AttendanceRecordDetail{{
		AttendanceRecord: models.AttendanceRecord{ID: "r1", TeacherID: "t1", CheckInTime: &checkIn, Status: models.AttendanceStatusOnTime},
		TeacherName:      "Ana",
		TeacherUniqueID:  "a1",
		TeacherEmail:     strPtr("ana@school.org"),
	}}}
	mailer := &fakeNotifier{channel: notify.ChannelEmail}
	svc, clock := newSweepFixture(at(17, 59, 59), ledger, mailer)

	result, err := svc.MissedSignOut(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.NotEmpty(t, result.Reason)
	assert.False(t, ledger.openCalled)
	assert.Equal(t, 0, mailer.count())

	clock.Set(at(18, 0, 0))
	result, err = svc.MissedSignOut(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Evaluated)
	assert.Equal(t, 1, result.Notified)
	msg := mailer.last()
	assert.Equal(t, notify.KindMissedSignOut, msg.Kind)
	assert.Equal(t, "06:40 AM", msg.Fields.Time)
	assert.Equal(t, "ana@school.org", msg.Recipient.Email)
}

func TestSweepLedgerError(t *testing.T) {
	svc, _ := newSweepFixture(at(19, 0, 0), &stubSweepLedger{err: errors.New("db down")})
	_, err := svc.MissedSignIn(context.Background(), "")
	assert.Error(t, err)
	_, err = svc.MissedSignOut(context.Background(), "")
	assert.Error(t, err)
}
