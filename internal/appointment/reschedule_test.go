package appointment

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) submit(t *testing.T, appt *Appointment, at string) *RescheduleRequest {
	t.Helper()
	req, err := f.svc.SubmitReschedule(context.Background(), f.patientCaller(), appt.ID, SubmitRescheduleInput{
		Date:   testDate,
		Time:   at,
		Reason: "work meeting",
	})
	require.NoError(t, err)
	return req
}

func TestSubmitReschedule(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	req := f.submit(t, appt, "14:00")
	assert.Equal(t, RequestPending, req.Status)
	assert.Equal(t, appt.ID, req.AppointmentID)
	assert.Equal(t, "14:00", req.ProposedTime.String())
	assert.Equal(t, "work meeting", req.Reason)
	assert.Nil(t, req.DecidedAt)

	got, err := f.repo.GetAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.Time.String(), "submitting must not move the appointment")
}

func TestSubmitReschedule_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00")
	in := SubmitRescheduleInput{Date: testDate, Time: "14:00"}

	_, err := f.svc.SubmitReschedule(ctx, Caller{ID: uuid.New(), Role: RolePatient}, appt.ID, in)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = f.svc.SubmitReschedule(ctx, f.staff, appt.ID, in)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.SubmitReschedule(ctx, f.patientCaller(), uuid.New(), in)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestSubmitReschedule_SameSlotSkipsAvailability(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	req := f.submit(t, appt, "09:00")
	assert.Equal(t, RequestPending, req.Status)
}

func TestSubmitReschedule_SlotTaken(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	f.book(t, "14:00")

	_, err := f.svc.SubmitReschedule(context.Background(), f.patientCaller(), appt.ID, SubmitRescheduleInput{Date: testDate, Time: "14:00"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestSubmitReschedule_OffGridTimeIsUnavailable(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	_, err := f.svc.SubmitReschedule(context.Background(), f.patientCaller(), appt.ID, SubmitRescheduleInput{Date: testDate, Time: "14:10"})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestSubmitReschedule_Validation(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	for _, in := range []SubmitRescheduleInput{
		{Time: "14:00"},
		{Date: testDate},
		{Date: testDate, Time: "2pm"},
		{Date: "March 10", Time: "14:00"},
	} {
		_, err := f.svc.SubmitReschedule(context.Background(), f.patientCaller(), appt.ID, in)
		assert.ErrorIs(t, err, ErrValidation, "input %+v", in)
	}
}

func TestSubmitReschedule_ReasonTruncated(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")

	req, err := f.svc.SubmitReschedule(context.Background(), f.patientCaller(), appt.ID, SubmitRescheduleInput{
		Date:   testDate,
		Time:   "14:00",
		Reason: "  " + strings.Repeat("é", 300) + "  ",
	})
	require.NoError(t, err)
	assert.Equal(t, MaxReasonLength, utf8.RuneCountInString(req.Reason))
	assert.True(t, strings.HasPrefix(req.Reason, "é"))
}

func TestDecideReschedule_Accept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00")
	req := f.submit(t, appt, "14:00")

	res, err := f.svc.DecideReschedule(ctx, f.staff, req.ID, DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, RequestAccepted, res.Request.Status)
	assert.NotNil(t, res.Request.DecidedAt)
	require.NotNil(t, res.Appointment)
	assert.Equal(t, "14:00", res.Appointment.Time.String())

	times := slotTimes(t, f, f.query())
	assert.Contains(t, times, "09:00")
	assert.NotContains(t, times, "14:00")

	assert.Equal(t, []string{EventAppointmentBooked, EventRescheduleSubmitted, EventRescheduleAccepted}, f.eventTypes())
}

func TestDecideReschedule_AcceptSameSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, "09:00")
	req := f.submit(t, appt, "09:00")

	res, err := f.svc.DecideReschedule(context.Background(), f.staff, req.ID, DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, RequestAccepted, res.Request.Status)
	assert.Equal(t, "09:00", res.Appointment.Time.String())
}

func TestDecideReschedule_SlotTakenMeanwhileLeavesRequestPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00")
	req := f.submit(t, appt, "14:00")

	other := f.bookInput("14:00")
	other.PhysicianID = f.addPhysician("Dr. Costa").ID
	_, err := f.svc.BookAppointment(ctx, f.staff, other)
	require.NoError(t, err)

	_, err = f.svc.DecideReschedule(ctx, f.staff, req.ID, DecisionAccept)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	stored, err := f.repo.GetReschedule(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestPending, stored.Status)

	got, err := f.repo.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.Time.String())

	// the desk can still deny it afterwards
	res, err := f.svc.DecideReschedule(ctx, f.staff, req.ID, DecisionDeny)
	require.NoError(t, err)
	assert.Equal(t, RequestDenied, res.Request.Status)
}

func TestDecideReschedule_StorageConflictKeepsRequestPending(t *testing.T) {
	f := newFixtureWithRepo(t, blindRepo)
	ctx := context.Background()
	appt := f.book(t, "09:00")
	req := f.submit(t, appt, "14:00")

	other := f.bookInput("14:00")
	other.PhysicianID = f.addPhysician("Dr. Costa").ID
	_, err := f.svc.BookAppointment(ctx, f.staff, other)
	require.NoError(t, err)

	_, err = f.svc.DecideReschedule(ctx, f.staff, req.ID, DecisionAccept)
	assert.ErrorIs(t, err, ErrStorageConflict)

	stored, err := f.repo.GetReschedule(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, RequestPending, stored.Status)
}

func TestDecideReschedule_DenyThenDecideAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00")
	req := f.submit(t, appt, "14:00")

	res, err := f.svc.DecideReschedule(ctx, f.staff, req.ID, DecisionDeny)
	require.NoError(t, err)
	assert.Equal(t, RequestDenied, res.Request.Status)
	assert.Nil(t, res.Appointment)

	_, err = f.svc.DecideReschedule(ctx, f.staff, req.ID, DecisionAccept)
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	_, err = f.svc.DecideReschedule(ctx, f.staff, req.ID, DecisionDeny)
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	got, err := f.repo.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.Time.String())
}

func TestDecideReschedule_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	appt := f.book(t, "09:00")
	req := f.submit(t, appt, "14:00")

	_, err := f.svc.DecideReschedule(ctx, f.patientCaller(), req.ID, DecisionAccept)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.DecideReschedule(ctx, f.staff, req.ID, Decision("maybe"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.DecideReschedule(ctx, f.staff, uuid.New(), DecisionAccept)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestListPendingReschedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.book(t, "09:00")
	second := f.book(t, "10:00")
	r1 := f.submit(t, first, "14:00")
	r2 := f.submit(t, second, "15:00")

	_, err := f.svc.DecideReschedule(ctx, f.staff, r1.ID, DecisionDeny)
	require.NoError(t, err)

	pending, err := f.svc.ListPendingReschedules(ctx, f.staff)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, r2.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[0].Appointment.ID)

	_, err = f.svc.ListPendingReschedules(ctx, f.patientCaller())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(" Accept ")
	require.NoError(t, err)
	assert.Equal(t, DecisionAccept, d)

	_, err = ParseDecision("approve")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListOwnReschedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	f.repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	first := f.book(t, "09:00")
	second := f.book(t, "10:00")

	denied := f.submit(t, first, "14:00")
	_, err := f.svc.DecideReschedule(ctx, f.staff, denied.ID, DecisionDeny)
	require.NoError(t, err)
	pending := f.submit(t, second, "15:00")

	other := Patient{ID: uuid.New(), Name: "Bruno Alves"}
	f.repo.AddPatient(other)
	in := f.bookInput("11:00")
	in.PatientID = other.ID
	theirs, err := f.svc.BookAppointment(ctx, f.staff, in)
	require.NoError(t, err)
	_, err = f.svc.SubmitReschedule(ctx, Caller{ID: other.ID, Role: RolePatient}, theirs.ID, SubmitRescheduleInput{Date: testDate, Time: "16:00"})
	require.NoError(t, err)

	mine, err := f.svc.ListOwnReschedules(ctx, f.patientCaller())
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, pending.ID, mine[0].ID)
	assert.Equal(t, RequestPending, mine[0].Status)
	assert.Equal(t, denied.ID, mine[1].ID)
	assert.Equal(t, RequestDenied, mine[1].Status)
	assert.NotNil(t, mine[1].DecidedAt)

	_, err = f.svc.ListOwnReschedules(ctx, f.staff)
	assert.ErrorIs(t, err, ErrForbidden)
}
