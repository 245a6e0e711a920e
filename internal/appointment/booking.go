package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

type BookInput struct {
	PatientID   uuid.UUID
	PhysicianID uuid.UUID
	ProcedureID uuid.UUID
	RoomID      uuid.UUID
	Date        string
	Time        string
	Payer       string
}

func (in BookInput) validate() error {
	switch {
	case in.PatientID == uuid.Nil:
		return validationError("patient_id is required")
	case in.PhysicianID == uuid.Nil:
		return validationError("physician_id is required")
	case in.ProcedureID == uuid.Nil:
		return validationError("procedure_id is required")
	case in.RoomID == uuid.Nil:
		return validationError("room_id is required")
	case in.Date == "" || in.Time == "":
		return validationError("date and time are required")
	}
	return nil
}

// BookAppointment creates a scheduled appointment. The room slot is checked
// under a distributed lock; the storage uniqueness constraint remains the
// final word and surfaces as ErrStorageConflict.
func (s *Service) BookAppointment(ctx context.Context, caller Caller, in BookInput) (*Appointment, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	slot, err := parseSlot(in.Date, in.Time)
	if err != nil {
		return nil, err
	}
	if !calendar.InBusinessHours(slot.Time) {
		return nil, validationErrorf("time %s is outside business hours %s-%s", slot.Time, calendar.DayStart, calendar.DayEnd)
	}

	procedure, err := s.loadReferences(ctx, in)
	if err != nil {
		return nil, err
	}
	payer := DerivePayer(procedure.Name, in.Payer)

	var created *Appointment

	err = s.withSlotLock(ctx, in.RoomID, slot, func(lockCtx context.Context) error {
		conflict, err := s.HasConflict(lockCtx, in.RoomID, slot.Date, slot.Time)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotUnavailable
		}

		appt, err := s.repo.InsertAppointment(lockCtx, NewAppointment{
			PatientID:   in.PatientID,
			PhysicianID: in.PhysicianID,
			ProcedureID: in.ProcedureID,
			RoomID:      in.RoomID,
			Date:        slot.Date,
			Time:        slot.Time,
			Payer:       payer,
		})
		if err != nil {
			return passThrough("insert appointment", err)
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"room_id":      in.RoomID.String(),
			"physician_id": in.PhysicianID.String(),
			"slot":         slot.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (s *Service) loadReferences(ctx context.Context, in BookInput) (*Procedure, error) {
	if _, err := s.repo.GetPatient(ctx, in.PatientID); err != nil {
		return nil, passThrough("load patient", err)
	}
	if _, err := s.repo.GetPhysician(ctx, in.PhysicianID); err != nil {
		return nil, passThrough("load physician", err)
	}
	if _, err := s.repo.GetRoom(ctx, in.RoomID); err != nil {
		return nil, passThrough("load room", err)
	}
	procedure, err := s.repo.GetProcedure(ctx, in.ProcedureID)
	if err != nil {
		return nil, passThrough("load procedure", err)
	}
	return procedure, nil
}

// GetAppointment returns an appointment visible to caller: staff see every
// appointment, patients and physicians only their own.
func (s *Service) GetAppointment(ctx context.Context, caller Caller, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, passThrough("get appointment", err)
	}

	switch caller.Role {
	case RoleStaff:
		return appt, nil
	case RolePatient:
		if appt.PatientID == caller.ID {
			return appt, nil
		}
	case RolePhysician:
		if appt.PhysicianID == caller.ID {
			return appt, nil
		}
	default:
		return nil, ErrForbidden
	}
	return nil, ErrAppointmentNotFound
}

// ListAppointments retrieves appointments matching filter, ordered by date and time.
func (s *Service) ListAppointments(ctx context.Context, caller Caller, filter AppointmentFilter) ([]Appointment, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = 20 // default
	}
	if filter.Limit > 100 {
		filter.Limit = 100 // max
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validationErrorf("unknown status %q", *filter.Status)
	}

	appts, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// ListOwnAppointments returns the calling patient's appointments in every
// status, latest slot first.
func (s *Service) ListOwnAppointments(ctx context.Context, caller Caller) ([]Appointment, error) {
	if !caller.IsPatient() {
		return nil, ErrForbidden
	}
	appts, err := s.repo.ListPatientAppointments(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return appts, nil
}

// DaySummary counts the day's appointments per status and the reschedule
// requests waiting for the front desk.
func (s *Service) DaySummary(ctx context.Context, caller Caller, date string) (*DaySummary, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	d, err := calendar.ParseDate(date)
	if err != nil {
		return nil, validationErrorf("invalid date %q: %v", date, err)
	}

	counts, err := s.repo.CountAppointmentsByStatus(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	for _, st := range Statuses {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}

	pending, err := s.repo.ListPendingReschedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending reschedules: %w", err)
	}

	return &DaySummary{Date: d, Counts: counts, PendingReschedules: len(pending)}, nil
}
