package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
	"github.com/hackgods/clinic-desk-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-desk-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentStatus      = "APPOINTMENT_STATUS_CHANGED"
	EventRescheduleSubmitted    = "RESCHEDULE_SUBMITTED"
	EventRescheduleAccepted     = "RESCHEDULE_ACCEPTED"
	EventRescheduleDenied       = "RESCHEDULE_DENIED"
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log,
	}
}

func (s *Service) stepMinutes() int {
	if s.cfg.SlotStepMinutes > 0 {
		return s.cfg.SlotStepMinutes
	}
	return calendar.DefaultStepMinutes
}

// withSlotLock runs fn while holding the distributed lock for one room slot.
// Lock contention is reported as ErrSlotBeingBooked.
func (s *Service) withSlotLock(ctx context.Context, roomID uuid.UUID, slot calendar.Slot, fn func(ctx context.Context) error) error {
	key := redisclient.SlotKey(roomID, calendar.FormatDate(slot.Date), slot.Time.String())

	err := s.locker.WithSlotLock(ctx, key, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		s.log.Info("slot lock contended", zap.String("key", key))
		return ErrSlotBeingBooked
	}
	return err
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("failed to insert event log",
			zap.String("event", eventType),
			zap.Stringer("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}

// passThrough returns recoverable errors unchanged and wraps everything else
// with the operation that failed.
func passThrough(op string, err error) error {
	if IsRecoverable(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireStaff(caller Caller) error {
	if !caller.IsStaff() {
		return ErrForbidden
	}
	return nil
}

func parseSlot(date, at string) (calendar.Slot, error) {
	d, err := calendar.ParseDate(date)
	if err != nil {
		return calendar.Slot{}, validationErrorf("invalid date %q: %v", date, err)
	}
	t, err := calendar.ParseTimeOfDay(at)
	if err != nil {
		return calendar.Slot{}, validationErrorf("invalid time %q: %v", at, err)
	}
	return calendar.NewSlot(d, t), nil
}
