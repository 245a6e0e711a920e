package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-desk-scheduling/internal/calendar"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDenied   RequestStatus = "denied"
)

type Role string

const (
	RolePatient   Role = "patient"
	RoleStaff     Role = "staff"
	RolePhysician Role = "physician"
)

// Caller is the authenticated identity on whose behalf an operation runs.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

func (c Caller) IsStaff() bool   { return c.Role == RoleStaff }
func (c Caller) IsPatient() bool { return c.Role == RolePatient }

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
}

type Physician struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
}

type Room struct {
	ID       uuid.UUID
	Name     string
	Capacity *int
}

type Procedure struct {
	ID          uuid.UUID
	Name        string
	Description *string
}

type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PhysicianID uuid.UUID
	ProcedureID uuid.UUID
	RoomID      uuid.UUID
	Date        time.Time
	Time        calendar.TimeOfDay
	Status      Status
	Payer       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a Appointment) Slot() calendar.Slot {
	return calendar.NewSlot(a.Date, a.Time)
}

// NewAppointment carries the fields of a row about to be inserted.
type NewAppointment struct {
	PatientID   uuid.UUID
	PhysicianID uuid.UUID
	ProcedureID uuid.UUID
	RoomID      uuid.UUID
	Date        time.Time
	Time        calendar.TimeOfDay
	Payer       *string
}

// AppointmentPatch is a staff edit; nil fields are left unchanged.
type AppointmentPatch struct {
	Status *Status
	Date   *time.Time
	Time   *calendar.TimeOfDay
}

func (p AppointmentPatch) Empty() bool {
	return p.Status == nil && p.Date == nil && p.Time == nil
}

type AppointmentFilter struct {
	Date        *time.Time
	PhysicianID *uuid.UUID
	RoomID      *uuid.UUID
	Status      *Status
	Payer       string
	Limit       int
	Offset      int
}

type RescheduleRequest struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	ProposedDate  time.Time
	ProposedTime  calendar.TimeOfDay
	Reason        string
	Status        RequestStatus
	CreatedAt     time.Time
	DecidedAt     *time.Time
}

func (r RescheduleRequest) ProposedSlot() calendar.Slot {
	return calendar.NewSlot(r.ProposedDate, r.ProposedTime)
}

type NewRescheduleRequest struct {
	AppointmentID uuid.UUID
	ProposedDate  time.Time
	ProposedTime  calendar.TimeOfDay
	Reason        string
}

// PendingReschedule is a pending request joined with the appointment it targets.
type PendingReschedule struct {
	RescheduleRequest
	Appointment Appointment
}

type StatusNormalization struct {
	AppointmentID uuid.UUID
	Raw           string
}

type DaySummary struct {
	Date               time.Time
	Counts             map[Status]int
	PendingReschedules int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
