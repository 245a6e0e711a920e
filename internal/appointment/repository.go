package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

// Repository contains all storage interactions needed by the service.
// Implementations must reject a second non-cancelled appointment on the
// same (room, date, time) with ErrStorageConflict.
type Repository interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPhysician(ctx context.Context, id uuid.UUID) (*Physician, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	GetProcedure(ctx context.Context, id uuid.UUID) (*Procedure, error)

	// Occupancy. exclude may be nil.
	FindOccupiedTimes(ctx context.Context, date time.Time, roomID, physicianID uuid.UUID, exclude *uuid.UUID) ([]calendar.TimeOfDay, error)
	RoomSlotTaken(ctx context.Context, roomID uuid.UUID, date time.Time, at calendar.TimeOfDay) (bool, error)

	// Appointments
	InsertAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error)
	UpdateAppointmentSchedule(ctx context.Context, id uuid.UUID, date time.Time, at calendar.TimeOfDay) (*Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (*Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
	// ListPatientAppointments returns every appointment of a patient, latest slot first.
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	CountAppointmentsByStatus(ctx context.Context, date time.Time) (map[Status]int, error)

	// Legacy status cleanup
	ListNonCanonicalStatuses(ctx context.Context, limit int) ([]StatusNormalization, error)

	// Reschedule requests
	InsertReschedule(ctx context.Context, in NewRescheduleRequest) (*RescheduleRequest, error)
	GetReschedule(ctx context.Context, id uuid.UUID) (*RescheduleRequest, error)
	ListPendingReschedules(ctx context.Context) ([]PendingReschedule, error)
	// ListPatientReschedules returns a patient's requests in every state, newest first.
	ListPatientReschedules(ctx context.Context, patientID uuid.UUID) ([]RescheduleRequest, error)
	DenyReschedule(ctx context.Context, id uuid.UUID) (*RescheduleRequest, error)
	// AcceptReschedule moves the target appointment to the proposed slot and
	// marks the request accepted as one transaction. Either both writes land
	// or neither does.
	AcceptReschedule(ctx context.Context, id uuid.UUID) (*RescheduleRequest, *Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
