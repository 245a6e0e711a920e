package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

type AvailabilityQuery struct {
	PhysicianID uuid.UUID
	RoomID      uuid.UUID
	Date        string
	// StepMinutes of zero uses the configured step.
	StepMinutes int
	// ExcludeAppointmentID ignores one appointment's occupancy, so an
	// appointment being edited does not collide with itself.
	ExcludeAppointmentID *uuid.UUID
}

// AvailableSlots returns the free slots for a physician and room on a day,
// in chronological order. A slot is taken when either resource is busy.
// Only staff may query arbitrary physicians and rooms.
func (s *Service) AvailableSlots(ctx context.Context, caller Caller, q AvailabilityQuery) ([]calendar.Slot, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	return s.querySlots(ctx, q)
}

func (s *Service) querySlots(ctx context.Context, q AvailabilityQuery) ([]calendar.Slot, error) {
	if q.PhysicianID == uuid.Nil {
		return nil, validationError("physician_id is required")
	}
	if q.RoomID == uuid.Nil {
		return nil, validationError("room_id is required")
	}
	date, err := calendar.ParseDate(q.Date)
	if err != nil {
		return nil, validationErrorf("invalid date %q: %v", q.Date, err)
	}
	step := q.StepMinutes
	if step == 0 {
		step = s.stepMinutes()
	}

	slots, err := s.availableSlots(ctx, q.PhysicianID, q.RoomID, date, step, q.ExcludeAppointmentID)
	if err != nil {
		return nil, passThrough("available slots", err)
	}
	return slots, nil
}

func (s *Service) availableSlots(ctx context.Context, physicianID, roomID uuid.UUID, date time.Time, step int, exclude *uuid.UUID) ([]calendar.Slot, error) {
	times, err := calendar.Enumerate(step)
	if err != nil {
		return nil, validationError(err.Error())
	}

	occupied, err := s.repo.FindOccupiedTimes(ctx, date, roomID, physicianID, exclude)
	if err != nil {
		return nil, err
	}
	busy := make(map[calendar.TimeOfDay]struct{}, len(occupied))
	for _, t := range occupied {
		busy[t] = struct{}{}
	}

	free := make([]calendar.Slot, 0, len(times))
	for _, t := range times {
		if _, taken := busy[t]; taken {
			continue
		}
		free = append(free, calendar.NewSlot(date, t))
	}
	return free, nil
}

// slotFree reports whether slot is offered by the calculator for the given
// physician and room at the configured step.
func (s *Service) slotFree(ctx context.Context, physicianID, roomID uuid.UUID, slot calendar.Slot, exclude *uuid.UUID) (bool, error) {
	free, err := s.availableSlots(ctx, physicianID, roomID, slot.Date, s.stepMinutes(), exclude)
	if err != nil {
		return false, err
	}
	for _, f := range free {
		if f.Time == slot.Time {
			return true, nil
		}
	}
	return false, nil
}

// HasConflict reports whether a non-cancelled appointment already holds the
// exact room slot. Only the room is checked: a physician double-booking
// posted directly, without going through AvailableSlots, is not caught here.
func (s *Service) HasConflict(ctx context.Context, roomID uuid.UUID, date time.Time, at calendar.TimeOfDay) (bool, error) {
	taken, err := s.repo.RoomSlotTaken(ctx, roomID, calendar.DateOf(date), at)
	if err != nil {
		return false, passThrough("check room conflict", err)
	}
	return taken, nil
}

// PatientAvailability lists free slots on date for the physician and room of
// an appointment owned by the calling patient.
func (s *Service) PatientAvailability(ctx context.Context, caller Caller, appointmentID uuid.UUID, date string) ([]calendar.Slot, error) {
	appt, err := s.ownedAppointment(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	if date == "" {
		return nil, validationError("date is required")
	}

	return s.querySlots(ctx, AvailabilityQuery{
		PhysicianID: appt.PhysicianID,
		RoomID:      appt.RoomID,
		Date:        date,
	})
}

// ownedAppointment loads an appointment on behalf of a patient. Appointments
// belonging to someone else are reported as not found.
func (s *Service) ownedAppointment(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
	if !caller.IsPatient() {
		return nil, ErrForbidden
	}
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, passThrough("load appointment", err)
	}
	if appt.PatientID != caller.ID {
		return nil, ErrAppointmentNotFound
	}
	return appt, nil
}
