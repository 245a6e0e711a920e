package appointment

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxReasonLength bounds the free-text reason on a reschedule request, in runes.
const MaxReasonLength = 240

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionDeny   Decision = "deny"
)

func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(raw))); d {
	case DecisionAccept, DecisionDeny:
		return d, nil
	}
	return "", validationErrorf("decision must be %q or %q", DecisionAccept, DecisionDeny)
}

type SubmitRescheduleInput struct {
	Date   string
	Time   string
	Reason string
}

type DecisionResult struct {
	Request     *RescheduleRequest
	Appointment *Appointment
}

// SubmitReschedule records a patient's proposal to move one of their own
// appointments. Proposing the slot the appointment already holds skips the
// availability check.
func (s *Service) SubmitReschedule(ctx context.Context, caller Caller, appointmentID uuid.UUID, in SubmitRescheduleInput) (*RescheduleRequest, error) {
	appt, err := s.ownedAppointment(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Time) == "" {
		return nil, validationError("new date and time are required")
	}
	proposed, err := parseSlot(in.Date, in.Time)
	if err != nil {
		return nil, err
	}

	if !proposed.Equal(appt.Slot()) {
		free, err := s.slotFree(ctx, appt.PhysicianID, appt.RoomID, proposed, nil)
		if err != nil {
			return nil, passThrough("check availability", err)
		}
		if !free {
			return nil, ErrSlotUnavailable
		}
	}

	req, err := s.repo.InsertReschedule(ctx, NewRescheduleRequest{
		AppointmentID: appt.ID,
		ProposedDate:  proposed.Date,
		ProposedTime:  proposed.Time,
		Reason:        truncateReason(in.Reason),
	})
	if err != nil {
		return nil, passThrough("insert reschedule request", err)
	}

	s.logEvent(ctx, appt.ID, EventRescheduleSubmitted, map[string]any{
		"request_id": req.ID.String(),
		"from":       appt.Slot().String(),
		"to":         proposed.String(),
	})

	return req, nil
}

// DecideReschedule applies a staff decision to a pending request. Accepting
// re-validates the proposed slot against current bookings; when it has been
// taken meanwhile the request stays pending so staff can retry.
func (s *Service) DecideReschedule(ctx context.Context, caller Caller, requestID uuid.UUID, decision Decision) (*DecisionResult, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	decision, err := ParseDecision(string(decision))
	if err != nil {
		return nil, err
	}

	req, err := s.repo.GetReschedule(ctx, requestID)
	if err != nil {
		return nil, passThrough("load reschedule request", err)
	}
	if req.Status != RequestPending {
		return nil, ErrAlreadyDecided
	}

	if decision == DecisionDeny {
		denied, err := s.repo.DenyReschedule(ctx, requestID)
		if err != nil {
			return nil, passThrough("deny reschedule request", err)
		}
		s.logEvent(ctx, denied.AppointmentID, EventRescheduleDenied, map[string]any{
			"request_id": denied.ID.String(),
		})
		return &DecisionResult{Request: denied}, nil
	}

	appt, err := s.repo.GetAppointment(ctx, req.AppointmentID)
	if err != nil {
		return nil, passThrough("load appointment", err)
	}

	proposed := req.ProposedSlot()
	from := appt.Slot()
	var result DecisionResult

	err = s.withSlotLock(ctx, appt.RoomID, proposed, func(lockCtx context.Context) error {
		if !proposed.Equal(from) {
			free, err := s.slotFree(lockCtx, appt.PhysicianID, appt.RoomID, proposed, nil)
			if err != nil {
				return passThrough("check availability", err)
			}
			if !free {
				return ErrSlotUnavailable
			}
			conflict, err := s.HasConflict(lockCtx, appt.RoomID, proposed.Date, proposed.Time)
			if err != nil {
				return err
			}
			if conflict {
				return ErrSlotUnavailable
			}
		}

		accepted, moved, err := s.repo.AcceptReschedule(lockCtx, requestID)
		if err != nil {
			return passThrough("accept reschedule request", err)
		}
		result = DecisionResult{Request: accepted, Appointment: moved}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventRescheduleAccepted, map[string]any{
		"request_id": requestID.String(),
		"from":       from.String(),
		"to":         proposed.String(),
	})

	return &result, nil
}

// ListPendingReschedules returns undecided requests, oldest first.
func (s *Service) ListPendingReschedules(ctx context.Context, caller Caller) ([]PendingReschedule, error) {
	if err := requireStaff(caller); err != nil {
		return nil, err
	}
	pending, err := s.repo.ListPendingReschedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending reschedules: %w", err)
	}
	return pending, nil
}

// ListOwnReschedules returns every request the calling patient submitted,
// decided or not, newest first.
func (s *Service) ListOwnReschedules(ctx context.Context, caller Caller) ([]RescheduleRequest, error) {
	if !caller.IsPatient() {
		return nil, ErrForbidden
	}
	reqs, err := s.repo.ListPatientReschedules(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list patient reschedules: %w", err)
	}
	return reqs, nil
}

func truncateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) <= MaxReasonLength {
		return reason
	}
	return string([]rune(reason)[:MaxReasonLength])
}
