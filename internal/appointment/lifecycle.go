package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

// UpdateAppointmentInput is a direct staff edit. Empty fields are left as
// they are; Date and Time must be given together.
type UpdateAppointmentInput struct {
	Status string
	Date   string
	Time   string
}

// UpdateAppointment applies a staff edit. Moving the appointment re-checks
// availability with the appointment's own occupancy ignored; changing only
// the status never does.
func (s *Service) UpdateAppointment(ctx context.Context, caller Caller, id uuid.UUID, in UpdateAppointmentInput) (*Appointment, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}

	var status *Status
	if raw := strings.TrimSpace(in.Status); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		status = &st
	}

	hasDate, hasTime := in.Date != "", in.Time != ""
	if hasDate != hasTime {
		return nil, validationError("date and time must be changed together")
	}

	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, passThrough("load appointment", err)
	}

	var patch AppointmentPatch
	if status != nil && *status != current.Status {
		patch.Status = status
	}

	var target calendar.Slot
	if hasDate {
		target, err = parseSlot(in.Date, in.Time)
		if err != nil {
			return nil, err
		}
		if !target.Equal(current.Slot()) {
			patch.Date = &target.Date
			patch.Time = &target.Time
		}
	}

	if patch.Empty() {
		return nil, validationError("no changes requested")
	}

	if patch.Date == nil {
		updated, err := s.repo.UpdateAppointment(ctx, id, patch)
		if err != nil {
			return nil, passThrough("update appointment status", err)
		}
		s.logEvent(ctx, id, EventAppointmentStatus, map[string]any{
			"from": string(current.Status),
			"to":   string(updated.Status),
		})
		return updated, nil
	}

	var updated *Appointment
	err = s.withSlotLock(ctx, current.RoomID, target, func(lockCtx context.Context) error {
		free, err := s.slotFree(lockCtx, current.PhysicianID, current.RoomID, target, &current.ID)
		if err != nil {
			return passThrough("check availability", err)
		}
		if !free {
			return ErrSlotUnavailable
		}
		conflict, err := s.HasConflict(lockCtx, current.RoomID, target.Date, target.Time)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotUnavailable
		}

		appt, err := s.repo.UpdateAppointment(lockCtx, id, patch)
		if err != nil {
			return passThrough("update appointment", err)
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, id, EventAppointmentRescheduled, map[string]any{
		"from":   current.Slot().String(),
		"to":     target.String(),
		"source": "staff",
	})
	if patch.Status != nil {
		s.logEvent(ctx, id, EventAppointmentStatus, map[string]any{
			"from": string(current.Status),
			"to":   string(updated.Status),
		})
	}
	return updated, nil
}

// SetStatus moves an appointment to any of the known statuses.
func (s *Service) SetStatus(ctx context.Context, caller Caller, id uuid.UUID, status string) (*Appointment, error) {
	if strings.TrimSpace(status) == "" {
		return nil, validationError("status is required")
	}
	return s.UpdateAppointment(ctx, caller, id, UpdateAppointmentInput{Status: status})
}

type NormalizeReport struct {
	Scanned    int
	Normalized int
	Unresolved int
	Failed     int
}

// NormalizeStatuses rewrites stored status labels that are not one of the
// canonical values. Labels that cannot be resolved are logged and left
// untouched for a human to fix.
func (s *Service) NormalizeStatuses(ctx context.Context, batchSize int) (NormalizeReport, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	rows, err := s.repo.ListNonCanonicalStatuses(ctx, batchSize)
	if err != nil {
		return NormalizeReport{}, fmt.Errorf("list non-canonical statuses: %w", err)
	}

	report := NormalizeReport{Scanned: len(rows)}
	for _, row := range rows {
		st, err := ParseStatus(row.Raw)
		if err != nil {
			report.Unresolved++
			s.log.Warn("unresolvable appointment status",
				zap.Stringer("appointment_id", row.AppointmentID),
				zap.String("raw", row.Raw),
			)
			continue
		}

		if _, err := s.repo.UpdateAppointmentStatus(ctx, row.AppointmentID, st); err != nil {
			report.Failed++
			s.log.Error("failed to normalize appointment status",
				zap.Stringer("appointment_id", row.AppointmentID),
				zap.String("raw", row.Raw),
				zap.Error(err),
			)
			continue
		}
		report.Normalized++
		s.logEvent(ctx, row.AppointmentID, EventAppointmentStatus, map[string]any{
			"from":   row.Raw,
			"to":     string(st),
			"source": "normalizer",
		})
	}

	return report, nil
}
